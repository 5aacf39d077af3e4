package handoff

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTTL = 2 * time.Hour
	keyPrefix  = "booking:handoff:"
)

// RecordStore keeps one raw record per browsing session. Save replaces any
// existing record.
type RecordStore interface {
	Save(ctx context.Context, sessionKey string, data []byte) error
	Load(ctx context.Context, sessionKey string) ([]byte, bool, error)
}

// RedisStore keeps records in Redis with a TTL.
type RedisStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed record store.
func NewRedisStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisStore {
	if client == nil {
		panic("handoff: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("booking.internal.handoff")
	}
	return &RedisStore{redis: client, tracer: tracer, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, sessionKey string, data []byte) error {
	ctx, span := s.tracer.Start(ctx, "handoff.save")
	defer span.End()
	span.SetAttributes(attribute.Int("handoff.bytes", len(data)))

	if err := s.redis.Set(ctx, recordKey(sessionKey), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("handoff: failed to persist record: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, sessionKey string) ([]byte, bool, error) {
	ctx, span := s.tracer.Start(ctx, "handoff.load")
	defer span.End()

	data, err := s.redis.Get(ctx, recordKey(sessionKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		span.RecordError(err)
		return nil, false, fmt.Errorf("handoff: failed to load record: %w", err)
	}
	return data, true, nil
}

func recordKey(sessionKey string) string {
	return keyPrefix + sessionKey
}

type memoryRecord struct {
	data    []byte
	expires time.Time
}

// MemoryStore keeps records in process. Used for local runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an in-process record store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryStore{
		records: make(map[string]memoryRecord),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, sessionKey string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[sessionKey] = memoryRecord{
		data:    append([]byte(nil), data...),
		expires: s.now().Add(s.ttl),
	}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, sessionKey string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[sessionKey]
	if !ok {
		return nil, false, nil
	}
	if s.now().After(rec.expires) {
		delete(s.records, sessionKey)
		return nil, false, nil
	}
	return append([]byte(nil), rec.data...), true, nil
}
