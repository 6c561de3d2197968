package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"parts-depot/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	rulesSnapshotKey   = "pricing:snapshot:rules"
	catalogSnapshotKey = "pricing:snapshot:catalog"

	DefaultSnapshotTTL = 24 * time.Hour
)

var (
	// ErrSnapshotMissing means no last-known copy is available.
	ErrSnapshotMissing = errors.New("snapshot missing")
)

// Snapshot is a last-known copy of a collection together with when it was taken.
type Snapshot[T any] struct {
	Items   []T       `json:"items"`
	SavedAt time.Time `json:"saved_at"`
}

// SnapshotStore keeps last-known copies of the catalog and the rule set so
// pricing can keep working while PostgreSQL is unreachable.
type SnapshotStore interface {
	SaveRules(ctx context.Context, rules []domain.PriceRule) error
	LoadRules(ctx context.Context) (*Snapshot[domain.PriceRule], error)
	SaveCatalog(ctx context.Context, products []domain.Product) error
	LoadCatalog(ctx context.Context) (*Snapshot[domain.Product], error)
}

type redisSnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewSnapshotStore returns a Redis-backed SnapshotStore. A non-positive ttl
// uses DefaultSnapshotTTL.
func NewSnapshotStore(client *redis.Client, ttl time.Duration) SnapshotStore {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &redisSnapshotStore{client: client, ttl: ttl, now: time.Now}
}

func (s *redisSnapshotStore) SaveRules(ctx context.Context, rules []domain.PriceRule) error {
	return save(ctx, s, rulesSnapshotKey, rules)
}

func (s *redisSnapshotStore) LoadRules(ctx context.Context) (*Snapshot[domain.PriceRule], error) {
	return load[domain.PriceRule](ctx, s.client, rulesSnapshotKey)
}

func (s *redisSnapshotStore) SaveCatalog(ctx context.Context, products []domain.Product) error {
	// engine output never goes into the catalog snapshot
	raw := make([]domain.Product, len(products))
	for i, p := range products {
		p.OriginalPrice = nil
		raw[i] = p
	}
	return save(ctx, s, catalogSnapshotKey, raw)
}

func (s *redisSnapshotStore) LoadCatalog(ctx context.Context) (*Snapshot[domain.Product], error) {
	return load[domain.Product](ctx, s.client, catalogSnapshotKey)
}

func save[T any](ctx context.Context, s *redisSnapshotStore, key string, items []T) error {
	if items == nil {
		items = []T{}
	}

	data, err := json.Marshal(Snapshot[T]{Items: items, SavedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s: %w", key, err)
	}

	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot %s: %w", key, err)
	}

	return nil
}

func load[T any](ctx context.Context, client *redis.Client, key string) (*Snapshot[T], error) {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotMissing
		}
		return nil, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}

	var snap Snapshot[T]
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}

	return &snap, nil
}
