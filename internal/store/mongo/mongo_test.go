package mongo

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"paybot/internal/core"
)

var ict = time.FixedZone("ICT", 7*3600)

func TestDocumentConversion(t *testing.T) {
	s := NewWithCollection(nil, ict)
	s.now = func() time.Time { return time.Date(2025, 11, 19, 2, 0, 0, 0, time.UTC) }

	tx := core.Transaction{
		ChatID:     -100,
		Amount:     decimal.RequireFromString("29.00"),
		Currency:   core.USD,
		OccurredAt: time.Date(2025, 11, 19, 8, 8, 0, 0, ict),
		RawText:    "Received 29.00 USD",
	}
	d := s.toDocument(tx, false)
	if d.Amount != "29" || d.OccurredLocal != "2025-11-19 08:08:00" || d.OccurredAt.Location() != time.UTC {
		t.Fatalf("document = %+v", d)
	}

	d.ID = primitive.NewObjectID()
	back, err := s.fromDocument(d)
	if err != nil {
		t.Fatal(err)
	}
	if !back.Amount.Equal(tx.Amount) || !back.OccurredAt.Equal(tx.OccurredAt) || back.ID != d.ID.Hex() {
		t.Fatalf("round trip = %+v", back)
	}

	d.Amount = "abc"
	if _, err := s.fromDocument(d); err == nil {
		t.Fatal("expected amount error")
	}
}

func TestFilters(t *testing.T) {
	start := time.Date(2025, 11, 12, 0, 0, 0, 0, ict)
	end := start.Add(24 * time.Hour)
	f := rangeFilter(7, start, end)
	want := bson.D{
		{Key: "chat_id", Value: int64(7)},
		{Key: "occurred_at", Value: bson.D{{Key: "$gte", Value: start.UTC()}, {Key: "$lte", Value: end.UTC()}}},
	}
	if !reflect.DeepEqual(f, want) {
		t.Fatalf("range filter = %v", f)
	}

	sf := stampFilter(7, "2025-11-19 08:")
	re, ok := sf[1].Value.(primitive.Regex)
	if !ok || re.Pattern != `^2025-11-19 08:` {
		t.Fatalf("stamp filter = %v", sf)
	}
	if len(stampFilter(7, "")) != 1 {
		t.Fatal("empty prefix should only filter on chat")
	}
}

func TestStore_WithMockDeployment(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("query range sums client side", func(mt *mtest.T) {
		s := NewWithCollection(mt.Coll, ict)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "amount", Value: "10.00"}, {Key: "currency", Value: "USD"}},
			bson.D{{Key: "amount", Value: "0.10"}, {Key: "currency", Value: "USD"}},
			bson.D{{Key: "amount", Value: "5000"}, {Key: "currency", Value: "KHR"}},
		))

		totals, err := s.QueryRange(context.Background(), 1, time.Now().Add(-time.Hour), time.Now())
		if err != nil {
			mt.Fatal(err)
		}
		if !totals.Sum(core.USD).Equal(decimal.RequireFromString("10.10")) || totals.Count != 3 {
			mt.Fatalf("totals = %+v", totals)
		}
	})

	mt.Run("distinct years", func(mt *mtest.T) {
		s := NewWithCollection(mt.Coll, ict)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "values", Value: bson.A{"2025-01-01 10:00:00", "2024-05-05 09:00:00", "2025-03-01 10:00:00"}},
		))

		years, err := s.DistinctYears(context.Background(), 1)
		if err != nil {
			mt.Fatal(err)
		}
		if !reflect.DeepEqual(years, []string{"2024", "2025"}) {
			mt.Fatalf("years = %v", years)
		}
	})

	mt.Run("append returns object id", func(mt *mtest.T) {
		s := NewWithCollection(mt.Coll, ict)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		id, err := s.Append(context.Background(), core.Transaction{
			ChatID: 1, Amount: decimal.NewFromInt(1), Currency: core.KHR,
			OccurredAt: time.Now(), RawText: "Received 1 KHR",
		})
		if err != nil {
			mt.Fatal(err)
		}
		if _, err := primitive.ObjectIDFromHex(id); err != nil {
			mt.Fatalf("id %q is not an object id", id)
		}
	})
}
