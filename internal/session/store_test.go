package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-insights/internal/domain"
)

func classifiedSet(t *testing.T, labels ...string) *domain.ClassifiedSet {
	t.Helper()
	records := make([]domain.TransactionRecord, len(labels))
	for i, l := range labels {
		records[i] = domain.TransactionRecord{
			Date:        civil.Date{Year: 2024, Month: time.May, Day: 1},
			Amount:      decimal.NewFromInt(-10),
			Description: l,
		}.WithCategory(l)
	}
	set, err := domain.NewClassifiedSet(records)
	require.NoError(t, err)
	return set
}

func TestStore_Lifecycle(t *testing.T) {
	s := NewStore(time.Hour)

	sess := s.Create()
	require.NotEmpty(t, sess.ID)
	assert.False(t, sess.HasData())

	first := classifiedSet(t, "Mercado")
	require.NoError(t, s.Replace(sess.ID, first))

	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	assert.True(t, got.HasData())
	assert.Same(t, first, got.Set())

	second := classifiedSet(t, "Lazer", "Outros")
	require.NoError(t, s.Replace(sess.ID, second))
	got, err = s.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Set().Len())

	require.NoError(t, s.Clear(sess.ID))
	got, err = s.Get(sess.ID)
	require.NoError(t, err)
	assert.False(t, got.HasData())

	require.NoError(t, s.Delete(sess.ID))
	_, err = s.Get(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SessionsAreIsolated(t *testing.T) {
	s := NewStore(0)
	a := s.Create()
	b := s.Create()
	assert.NotEqual(t, a.ID, b.ID)

	require.NoError(t, s.Replace(a.ID, classifiedSet(t, "Mercado")))

	got, err := s.Get(b.ID)
	require.NoError(t, err)
	assert.False(t, got.HasData())
}

func TestStore_UnknownSession(t *testing.T) {
	s := NewStore(0)
	for name, err := range map[string]error{
		"replace": s.Replace("nope", classifiedSet(t, "X")),
		"clear":   s.Clear("nope"),
		"delete":  s.Delete("nope"),
	} {
		assert.True(t, errors.Is(err, ErrNotFound), name)
	}
}

func TestStore_ReplaceRejectsNil(t *testing.T) {
	s := NewStore(0)
	sess := s.Create()
	assert.Error(t, s.Replace(sess.ID, nil))
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore(0)
	sess := s.Create()

	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	got.ID = "mutated"

	again, err := s.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, again.ID)
}

func TestStore_Expire(t *testing.T) {
	s := NewStore(time.Hour)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	stale := s.Create()
	s.now = func() time.Time { return base.Add(50 * time.Minute) }
	fresh := s.Create()

	removed := s.Expire(base.Add(90 * time.Minute))
	assert.Equal(t, 1, removed)

	_, err := s.Get(stale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(fresh.ID)
	assert.NoError(t, err)

	assert.Equal(t, 0, NewStore(0).Expire(base.Add(1000*time.Hour)))
}

func TestStore_ReadsKeepSessionAlive(t *testing.T) {
	s := NewStore(time.Hour)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	sess := s.Create()
	require.NoError(t, s.Replace(sess.ID, classifiedSet(t, "Mercado")))

	for minute := 10; minute <= 180; minute += 10 {
		now := base.Add(time.Duration(minute) * time.Minute)
		s.now = func() time.Time { return now }

		got, err := s.Get(sess.ID)
		require.NoError(t, err, "minute %d", minute)
		require.True(t, got.HasData(), "minute %d", minute)
		assert.Equal(t, 0, s.Expire(now), "minute %d", minute)
	}

	// Once reads stop, the session goes after one TTL.
	last := base.Add(180 * time.Minute)
	assert.Equal(t, 0, s.Expire(last.Add(59*time.Minute)))
	assert.Equal(t, 1, s.Expire(last.Add(61*time.Minute)))
}

func TestStore_Concurrent(t *testing.T) {
	s := NewStore(0)
	sess := s.Create()
	set := classifiedSet(t, "Mercado")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Replace(sess.ID, set)
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Get(sess.ID)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, s.Len())
}
