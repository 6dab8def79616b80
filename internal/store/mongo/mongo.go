// Package mongo stores transactions in a MongoDB collection. Range sums are
// computed client-side from the matching documents so that amounts stay
// exact decimals.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"paybot/internal/core"
	"paybot/internal/store"
)

type document struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	ChatID        int64              `bson:"chat_id"`
	Amount        string             `bson:"amount"`
	Currency      string             `bson:"currency"`
	OccurredAt    time.Time          `bson:"occurred_at"`
	OccurredLocal string             `bson:"occurred_local"`
	RawText       string             `bson:"raw_text"`
	Mirrored      bool               `bson:"mirrored"`
	CreatedAt     time.Time          `bson:"created_at"`
}

// Store is a MongoDB-backed store.Store.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	loc    *time.Location
	now    func() time.Time
}

// Connect dials uri and returns a store on database.collection.
func Connect(ctx context.Context, uri, database, collection string, loc *time.Location) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	s := NewWithCollection(client.Database(database).Collection(collection), loc)
	s.client = client

	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// NewWithCollection wraps an existing collection.
func NewWithCollection(coll *mongo.Collection, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{coll: coll, loc: loc, now: time.Now}
}

// EnsureIndexes creates the range and mirror-scan indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "occurred_at", Value: 1}}},
		{Keys: bson.D{{Key: "mirrored", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create mongo indexes: %w", err)
	}
	return nil
}

func (s *Store) toDocument(tx core.Transaction, mirrored bool) document {
	return document{
		ChatID:        tx.ChatID,
		Amount:        tx.Amount.String(),
		Currency:      tx.Currency.String(),
		OccurredAt:    tx.OccurredAt.UTC(),
		OccurredLocal: tx.LocalStamp(s.loc),
		RawText:       tx.RawText,
		Mirrored:      mirrored,
		CreatedAt:     s.now().UTC(),
	}
}

func (s *Store) fromDocument(d document) (core.Transaction, error) {
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("document %s: amount %q: %w", d.ID.Hex(), d.Amount, err)
	}
	return core.Transaction{
		ID:         d.ID.Hex(),
		ChatID:     d.ChatID,
		Amount:     amount,
		Currency:   core.Currency(d.Currency),
		OccurredAt: d.OccurredAt.In(s.loc),
		RawText:    d.RawText,
	}, nil
}

func (s *Store) Append(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	res, err := s.coll.InsertOne(ctx, s.toDocument(tx, false))
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprint(res.InsertedID), nil
}

func rangeFilter(chatID int64, start, end time.Time) bson.D {
	return bson.D{
		{Key: "chat_id", Value: chatID},
		{Key: "occurred_at", Value: bson.D{
			{Key: "$gte", Value: start.UTC()},
			{Key: "$lte", Value: end.UTC()},
		}},
	}
}

func (s *Store) QueryRange(ctx context.Context, chatID int64, start, end time.Time) (core.Totals, error) {
	opts := options.Find().SetProjection(bson.D{{Key: "amount", Value: 1}, {Key: "currency", Value: 1}})
	cur, err := s.coll.Find(ctx, rangeFilter(chatID, start, end), opts)
	if err != nil {
		return core.Totals{}, fmt.Errorf("query range: %w", err)
	}
	defer cur.Close(ctx)

	totals := core.NewTotals()
	for cur.Next(ctx) {
		var d document
		if err := cur.Decode(&d); err != nil {
			return core.Totals{}, fmt.Errorf("decode transaction: %w", err)
		}
		c, err := core.ParseCurrency(d.Currency)
		if err != nil {
			continue
		}
		amount, err := decimal.NewFromString(d.Amount)
		if err != nil {
			return core.Totals{}, fmt.Errorf("document %s: amount %q: %w", d.ID.Hex(), d.Amount, err)
		}
		totals.Add(c, amount)
	}
	if err := cur.Err(); err != nil {
		return core.Totals{}, fmt.Errorf("iterate range: %w", err)
	}
	return totals, nil
}

func stampFilter(chatID int64, prefix string) bson.D {
	f := bson.D{{Key: "chat_id", Value: chatID}}
	if prefix != "" {
		f = append(f, bson.E{Key: "occurred_local", Value: primitive.Regex{Pattern: "^" + regexp.QuoteMeta(prefix)}})
	}
	return f
}

func (s *Store) stamps(ctx context.Context, chatID int64, prefix string) ([]string, error) {
	vals, err := s.coll.Distinct(ctx, "occurred_local", stampFilter(chatID, prefix))
	if err != nil {
		return nil, fmt.Errorf("distinct stamps: %w", err)
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if str, ok := v.(string); ok {
			out = append(out, str)
		}
	}
	return out, nil
}

func (s *Store) DistinctYears(ctx context.Context, chatID int64) ([]string, error) {
	st, err := s.stamps(ctx, chatID, "")
	if err != nil {
		return nil, err
	}
	return store.YearLabels(st), nil
}

func (s *Store) DistinctMonths(ctx context.Context, chatID int64, year string) ([]string, error) {
	st, err := s.stamps(ctx, chatID, store.LocalPrefix(year))
	if err != nil {
		return nil, err
	}
	return store.MonthLabels(st, year), nil
}

func (s *Store) DistinctDays(ctx context.Context, chatID int64, year, month string) ([]string, error) {
	st, err := s.stamps(ctx, chatID, store.LocalPrefix(year, month))
	if err != nil {
		return nil, err
	}
	return store.DayLabels(st, year, month), nil
}

func (s *Store) DistinctHours(ctx context.Context, chatID int64, date string) ([]string, error) {
	st, err := s.stamps(ctx, chatID, store.DayPrefix(date))
	if err != nil {
		return nil, err
	}
	return store.HourLabels(st, date), nil
}

func (s *Store) DistinctMinutes(ctx context.Context, chatID int64, date, hour string) ([]string, error) {
	st, err := s.stamps(ctx, chatID, store.DayPrefix(date)+hour+":")
	if err != nil {
		return nil, err
	}
	return store.MinuteLabels(st, date, hour), nil
}

// Import upserts each transaction on its restore key so that existing rows
// are left untouched.
func (s *Store) Import(ctx context.Context, txs []core.Transaction) (int, error) {
	inserted := 0
	for _, tx := range txs {
		if tx.Validate() != nil {
			continue
		}
		filter := bson.D{
			{Key: "chat_id", Value: tx.ChatID},
			{Key: "occurred_at", Value: tx.OccurredAt.UTC()},
			{Key: "amount", Value: tx.Amount.String()},
		}
		update := bson.D{{Key: "$setOnInsert", Value: s.toDocument(tx, true)}}
		res, err := s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
		if err != nil {
			return inserted, fmt.Errorf("import transaction: %w", err)
		}
		inserted += int(res.UpsertedCount)
	}
	return inserted, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return int(n), nil
}

func (s *Store) PendingMirror(ctx context.Context, limit int) ([]core.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, bson.D{{Key: "mirrored", Value: false}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find pending: %w", err)
	}
	defer cur.Close(ctx)

	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode pending: %w", err)
	}
	out := make([]core.Transaction, 0, len(docs))
	for _, d := range docs {
		tx, err := s.fromDocument(d)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func (s *Store) MarkMirrored(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	res, err := s.coll.UpdateByID(ctx, oid, bson.D{{Key: "$set", Value: bson.D{{Key: "mirrored", Value: true}}}})
	if err != nil {
		return fmt.Errorf("mark mirrored: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) IsMirrored(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	var d document
	err = s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}},
		options.FindOne().SetProjection(bson.D{{Key: "mirrored", Value: 1}})).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, store.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("get mirrored: %w", err)
	}
	return d.Mirrored, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return err
	}
	return nil
}

var _ store.Store = (*Store)(nil)
