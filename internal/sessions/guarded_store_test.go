package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/guardlens/internal/circuitbreaker"
)

type failingStore struct {
	*MemoryStore
	err   error
	saves int
}

func (f *failingStore) Save(ctx context.Context, s *Summary) error {
	f.saves++
	if f.err != nil {
		return f.err
	}
	return f.MemoryStore.Save(ctx, s)
}

func TestGuardedStore_OpensAfterFailures(t *testing.T) {
	ctx := context.Background()
	backing := &failingStore{MemoryStore: NewMemoryStore(), err: errors.New("connection refused")}
	g := NewGuardedStore(backing, circuitbreaker.New(2, time.Hour))
	s := summaryAt("ses_1", time.Now().UTC())

	assert.EqualError(t, g.Save(ctx, s), "connection refused")
	assert.EqualError(t, g.Save(ctx, s), "connection refused")

	err := g.Save(ctx, s)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 2, backing.saves, "open circuit does not reach the store")

	_, err = g.List(ctx, 10)
	assert.NoError(t, err, "reads trip independently")
}

func TestGuardedStore_NotFoundIsNotAFailure(t *testing.T) {
	ctx := context.Background()
	g := NewGuardedStore(NewMemoryStore(), circuitbreaker.New(1, time.Hour))

	for i := 0; i < 3; i++ {
		_, err := g.Get(ctx, "ses_missing")
		assert.ErrorIs(t, err, ErrNotFound)
	}

	require.NoError(t, g.Save(ctx, summaryAt("ses_1", time.Now().UTC())))
	got, err := g.Get(ctx, "ses_1")
	require.NoError(t, err)
	assert.Equal(t, "ses_1", got.ID)
}
