// Package redisstore keeps wizard sessions in Redis so that conversations
// survive a bot restart and can be shared by several bot replicas.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"paybot/internal/wizard"
)

const keyPrefix = "paybot:session:"

// Store implements wizard.SessionStore on a Redis client.
type Store struct {
	client redis.Cmdable
	ttl    time.Duration
}

// New wraps an existing client. Sessions expire after ttl of inactivity.
func New(client redis.Cmdable, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Dial connects to addr and verifies the connection with a ping.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func sessionKey(k wizard.Key) string {
	return keyPrefix + k.String()
}

func (s *Store) Load(ctx context.Context, k wizard.Key) (wizard.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return wizard.Session{}, nil
	}
	if err != nil {
		return wizard.Session{}, fmt.Errorf("load session %s: %w", k, err)
	}

	var sess wizard.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		// A corrupt entry is treated as no session.
		_ = s.client.Del(ctx, sessionKey(k)).Err()
		return wizard.Session{}, nil
	}
	return sess, nil
}

func (s *Store) Save(ctx context.Context, k wizard.Key, sess wizard.Session) error {
	if !sess.Active() {
		return s.Discard(ctx, k)
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(k), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", k, err)
	}
	return nil
}

func (s *Store) Discard(ctx context.Context, k wizard.Key) error {
	if err := s.client.Del(ctx, sessionKey(k)).Err(); err != nil {
		return fmt.Errorf("discard session %s: %w", k, err)
	}
	return nil
}
