package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/cv-profiler/internal/apperrors"
	"alfredoptarigan/cv-profiler/internal/config"
	"alfredoptarigan/cv-profiler/internal/models"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()

	return &Session{
		ID:        uuid.New().String(),
		Order:     []string{"jan.pdf", "eva.png"},
		Profiles:  map[string]*models.CandidateProfile{"jan.pdf": janProfile(t), "eva.png": janProfile(t)},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// exerciseSessionStore checks the behavior every backend shares.
func exerciseSessionStore(t *testing.T, store SessionStore) {
	ctx := context.Background()
	session := newTestSession(t)

	require.NoError(t, store.Create(ctx, session))

	got, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Order, got.Order)
	assert.Equal(t, session.Profiles["jan.pdf"], got.Profiles["jan.pdf"])

	edited := janProfile(t)
	edited.Personal.Name = "Jan Novák-Horák"
	require.NoError(t, store.PutProfile(ctx, session.ID, "jan.pdf", edited))

	got, err = store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jan Novák-Horák", got.Profiles["jan.pdf"].Personal.Name)
	assert.Equal(t, "Jan Novák", got.Profiles["eva.png"].Personal.Name)
	assert.Equal(t, []string{"jan.pdf", "eva.png"}, got.Order)

	err = store.PutProfile(ctx, session.ID, "unknown.pdf", edited)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	err = store.PutProfile(ctx, "missing", "jan.pdf", edited)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	require.NoError(t, store.Delete(ctx, session.ID))
	_, err = store.Get(ctx, session.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	assert.NoError(t, store.Delete(ctx, session.ID))
}

func TestMemorySessionStore(t *testing.T) {
	exerciseSessionStore(t, NewMemorySessionStore(time.Hour))
}

func TestMemorySessionStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(0)
	session := newTestSession(t)
	require.NoError(t, store.Create(ctx, session))

	session.Profiles["jan.pdf"].Personal.Name = "changed after create"
	session.Order[0] = "changed.pdf"

	got, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jan Novák", got.Profiles["jan.pdf"].Personal.Name)
	assert.Equal(t, "jan.pdf", got.Order[0])

	got.Profiles["jan.pdf"].Experience[0].Details[0] = "changed after get"
	again, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kommissionierung", again.Profiles["jan.pdf"].Experience[0].Details[0])
}

func TestMemorySessionStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &memorySessionStore{
		ttl:      30 * time.Minute,
		sessions: make(map[string]*memorySessionEntry),
		now:      func() time.Time { return now },
	}

	session := newTestSession(t)
	require.NoError(t, store.Create(ctx, session))

	now = now.Add(20 * time.Minute)
	require.NoError(t, store.PutProfile(ctx, session.ID, "jan.pdf", janProfile(t)))

	now = now.Add(20 * time.Minute)
	_, err := store.Get(ctx, session.ID)
	require.NoError(t, err, "an edit extends the session lifetime")

	now = now.Add(11 * time.Minute)
	_, err = store.Get(ctx, session.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	require.NoError(t, store.Create(ctx, newTestSession(t)))
	assert.Len(t, store.sessions, 1)
}

func newTestRedisStore(t *testing.T, ttl time.Duration) (SessionStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisSessionStore(client, "cvprofile:test:", ttl)
	require.NoError(t, err)
	return store, mr
}

func TestRedisSessionStore(t *testing.T) {
	store, _ := newTestRedisStore(t, time.Minute)
	exerciseSessionStore(t, store)
}

func TestRedisSessionStore_TTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t, 30*time.Minute)

	session := newTestSession(t)
	require.NoError(t, store.Create(ctx, session))
	key := "cvprofile:test:" + session.ID
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 30*time.Minute, mr.TTL(key))

	mr.FastForward(20 * time.Minute)
	require.NoError(t, store.PutProfile(ctx, session.ID, "jan.pdf", janProfile(t)))
	assert.Equal(t, 30*time.Minute, mr.TTL(key), "an edit extends the session lifetime")

	mr.FastForward(31 * time.Minute)
	_, err := store.Get(ctx, session.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestRedisSessionStore_EditKeepsOtherProfiles(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t, time.Minute)

	session := newTestSession(t)
	require.NoError(t, store.Create(ctx, session))

	first := janProfile(t)
	first.Personal.Name = "Jan Novák-Horák"
	second := janProfile(t)
	second.Personal.Name = "Eva Horváthová"
	require.NoError(t, store.PutProfile(ctx, session.ID, "jan.pdf", first))
	require.NoError(t, store.PutProfile(ctx, session.ID, "eva.png", second))

	got, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jan Novák-Horák", got.Profiles["jan.pdf"].Personal.Name)
	assert.Equal(t, "Eva Horváthová", got.Profiles["eva.png"].Personal.Name)
}

func TestRedisSessionStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisSessionStore(redis.NewClient(&redis.Options{Addr: addr}), "", time.Minute)
	assert.Error(t, err)

	_, err = NewRedisSessionStore(nil, "", time.Minute)
	assert.Error(t, err)
}

func TestNewSessionStore(t *testing.T) {
	store, err := NewSessionStore(config.SessionConfig{Backend: "memory", TTL: time.Minute})
	require.NoError(t, err)
	assert.NotNil(t, store)

	mr := miniredis.RunT(t)
	store, err = NewSessionStore(config.SessionConfig{Backend: "redis", RedisURL: "redis://" + mr.Addr(), TTL: time.Minute})
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), newTestSession(t)))
	assert.Len(t, mr.Keys(), 1)

	_, err = NewSessionStore(config.SessionConfig{Backend: "redis", RedisURL: "not a url"})
	assert.Equal(t, apperrors.KindConfiguration, apperrors.KindOf(err))

	_, err = NewSessionStore(config.SessionConfig{Backend: "etcd"})
	assert.Equal(t, apperrors.KindConfiguration, apperrors.KindOf(err))
}
