package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTTL bounds how long an idle conversation is kept.
const DefaultTTL = 24 * time.Hour

// ErrTrackerNotFound is returned when no state exists for a conversation.
var ErrTrackerNotFound = errors.New("dialogue: unknown conversation")

// TrackerStore persists trackers between turns.
type TrackerStore interface {
	Load(ctx context.Context, conversationID string) (*Tracker, error)
	Save(ctx context.Context, tracker *Tracker) error
	Delete(ctx context.Context, conversationID string) error
}

// RedisTrackerStore keeps trackers as JSON documents with a sliding TTL.
type RedisTrackerStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
	now    func() time.Time
}

// NewRedisTrackerStore wires a Redis-backed store.
func NewRedisTrackerStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisTrackerStore {
	if client == nil {
		panic("dialogue: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("appointments.internal.dialogue.store")
	}
	return &RedisTrackerStore{
		redis:  client,
		ttl:    ttl,
		tracer: tracer,
		now:    time.Now,
	}
}

func (s *RedisTrackerStore) Load(ctx context.Context, conversationID string) (*Tracker, error) {
	ctx, span := s.tracer.Start(ctx, "dialogue.load_tracker")
	defer span.End()
	span.SetAttributes(attribute.String("assistant.conversation_id", conversationID))

	data, err := s.redis.Get(ctx, trackerKey(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrTrackerNotFound, conversationID)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("dialogue: failed to load tracker: %w", err)
	}

	var tracker Tracker
	if err := json.Unmarshal(data, &tracker); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("dialogue: failed to decode tracker: %w", err)
	}
	if tracker.Slots == nil {
		tracker.Slots = map[string]any{}
	}
	return &tracker, nil
}

func (s *RedisTrackerStore) Save(ctx context.Context, tracker *Tracker) error {
	ctx, span := s.tracer.Start(ctx, "dialogue.save_tracker")
	defer span.End()

	if tracker == nil || tracker.ConversationID == "" {
		return errors.New("dialogue: tracker requires a conversation id")
	}
	span.SetAttributes(attribute.String("assistant.conversation_id", tracker.ConversationID))

	tracker.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(tracker)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("dialogue: failed to marshal tracker: %w", err)
	}
	if err := s.redis.Set(ctx, trackerKey(tracker.ConversationID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("dialogue: failed to persist tracker: %w", err)
	}
	return nil
}

func (s *RedisTrackerStore) Delete(ctx context.Context, conversationID string) error {
	ctx, span := s.tracer.Start(ctx, "dialogue.delete_tracker")
	defer span.End()

	if err := s.redis.Del(ctx, trackerKey(conversationID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("dialogue: failed to delete tracker: %w", err)
	}
	return nil
}

func trackerKey(id string) string {
	return fmt.Sprintf("tracker:%s", id)
}

// MemoryTrackerStore is an in-process store for development and tests.
type MemoryTrackerStore struct {
	mu       sync.RWMutex
	trackers map[string]*Tracker
	now      func() time.Time
}

// NewMemoryTrackerStore returns an empty in-memory store.
func NewMemoryTrackerStore() *MemoryTrackerStore {
	return &MemoryTrackerStore{
		trackers: make(map[string]*Tracker),
		now:      time.Now,
	}
}

func (s *MemoryTrackerStore) Load(_ context.Context, conversationID string) (*Tracker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tracker, ok := s.trackers[conversationID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTrackerNotFound, conversationID)
	}
	return tracker.Clone(), nil
}

func (s *MemoryTrackerStore) Save(_ context.Context, tracker *Tracker) error {
	if tracker == nil || tracker.ConversationID == "" {
		return errors.New("dialogue: tracker requires a conversation id")
	}
	tracker.UpdatedAt = s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackers[tracker.ConversationID] = tracker.Clone()
	return nil
}

func (s *MemoryTrackerStore) Delete(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trackers, conversationID)
	return nil
}
