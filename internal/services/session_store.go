package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"alfredoptarigan/cv-profiler/internal/apperrors"
	"alfredoptarigan/cv-profiler/internal/config"
	"alfredoptarigan/cv-profiler/internal/models"
)

// Session holds the parsed profiles of one editing session, keyed by the
// original upload filename. Order keeps the upload order.
type Session struct {
	ID        string                              `json:"id"`
	Order     []string                            `json:"order"`
	Profiles  map[string]*models.CandidateProfile `json:"profiles"`
	CreatedAt time.Time                           `json:"created_at"`
}

func (s *Session) clone() *Session {
	out := &Session{
		ID:        s.ID,
		Order:     append([]string(nil), s.Order...),
		Profiles:  make(map[string]*models.CandidateProfile, len(s.Profiles)),
		CreatedAt: s.CreatedAt,
	}
	for name, profile := range s.Profiles {
		out.Profiles[name] = profile.Clone()
	}
	return out
}

// SessionStore keeps sessions for their lifetime. Only the orchestrator writes to it.
type SessionStore interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	PutProfile(ctx context.Context, id, filename string, profile *models.CandidateProfile) error
	Delete(ctx context.Context, id string) error
}

func sessionNotFound(id string) error {
	return apperrors.Newf(apperrors.KindNotFound, "session %s not found", id)
}

func profileNotFound(id, filename string) error {
	return apperrors.Newf(apperrors.KindNotFound, "session %s has no profile for %q", id, filename)
}

type memorySessionEntry struct {
	session   *Session
	expiresAt time.Time
}

type memorySessionStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]*memorySessionEntry
	now      func() time.Time
}

// NewMemorySessionStore keeps sessions in process memory. A zero ttl never expires.
func NewMemorySessionStore(ttl time.Duration) SessionStore {
	return &memorySessionStore{
		ttl:      ttl,
		sessions: make(map[string]*memorySessionEntry),
		now:      time.Now,
	}
}

func (m *memorySessionStore) Create(ctx context.Context, session *Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session must have an id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.evictExpired()
	m.sessions[session.ID] = &memorySessionEntry{
		session:   session.clone(),
		expiresAt: m.expiry(),
	}
	return nil
}

func (m *memorySessionStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[id]
	if !ok || m.expired(entry) {
		return nil, sessionNotFound(id)
	}
	return entry.session.clone(), nil
}

func (m *memorySessionStore) PutProfile(ctx context.Context, id, filename string, profile *models.CandidateProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[id]
	if !ok || m.expired(entry) {
		return sessionNotFound(id)
	}
	if _, ok := entry.session.Profiles[filename]; !ok {
		return profileNotFound(id, filename)
	}

	entry.session.Profiles[filename] = profile.Clone()
	entry.expiresAt = m.expiry()
	return nil
}

func (m *memorySessionStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

func (m *memorySessionStore) expiry() time.Time {
	if m.ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(m.ttl)
}

func (m *memorySessionStore) expired(entry *memorySessionEntry) bool {
	return !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt)
}

// evictExpired must be called with the write lock held.
func (m *memorySessionStore) evictExpired() {
	for id, entry := range m.sessions {
		if m.expired(entry) {
			delete(m.sessions, id)
		}
	}
}

type redisSessionStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisSessionStore stores each session as one JSON value under keyPrefix+id.
func NewRedisSessionStore(client *redis.Client, keyPrefix string, ttl time.Duration) (SessionStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if keyPrefix == "" {
		keyPrefix = "cvprofile:session:"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &redisSessionStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}, nil
}

func (r *redisSessionStore) key(id string) string {
	return r.keyPrefix + id
}

func (r *redisSessionStore) Create(ctx context.Context, session *Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session must have an id")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", session.ID, err)
	}
	if err := r.client.Set(ctx, r.key(session.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session %s: %w", session.ID, err)
	}
	return nil
}

func (r *redisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	return r.get(ctx, r.client, id)
}

func (r *redisSessionStore) get(ctx context.Context, cmd redis.Cmdable, id string) (*Session, error) {
	data, err := cmd.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sessionNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}
	return &session, nil
}

// PutProfile replaces one profile inside a WATCH transaction so concurrent
// edits of other files in the same session are not lost.
func (r *redisSessionStore) PutProfile(ctx context.Context, id, filename string, profile *models.CandidateProfile) error {
	key := r.key(id)

	return r.client.Watch(ctx, func(tx *redis.Tx) error {
		session, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, ok := session.Profiles[filename]; !ok {
			return profileNotFound(id, filename)
		}
		session.Profiles[filename] = profile

		data, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to marshal session %s: %w", id, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}, key)
}

func (r *redisSessionStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// NewSessionStore builds the configured backend.
func NewSessionStore(cfg config.SessionConfig) (SessionStore, error) {
	switch cfg.Backend {
	case "", "memory":
		log.Info().Dur("ttl", cfg.TTL).Msg("✅ Using in-memory session store")
		return NewMemorySessionStore(cfg.TTL), nil
	case "redis":
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, apperrors.New(apperrors.KindConfiguration, "invalid REDIS_URL", err)
		}
		store, err := NewRedisSessionStore(redis.NewClient(opt), "", cfg.TTL)
		if err != nil {
			return nil, err
		}
		log.Info().Str("addr", opt.Addr).Dur("ttl", cfg.TTL).Msg("✅ Using Redis session store")
		return store, nil
	default:
		return nil, apperrors.Newf(apperrors.KindConfiguration, "unknown session backend %q", cfg.Backend)
	}
}
