package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/mbd888/guardlens/internal/circuitbreaker"
)

// ErrUnavailable is returned while the backing store's circuit is open.
var ErrUnavailable = errors.New("sessions: store unavailable")

// GuardedStore puts a circuit breaker in front of another Store so a dead
// database fails fast instead of stalling monitoring transitions on retries.
// Reads and writes trip independently. ErrNotFound never counts as a failure.
type GuardedStore struct {
	next    Store
	breaker *circuitbreaker.Breaker
}

var _ Store = (*GuardedStore)(nil)

func NewGuardedStore(next Store, b *circuitbreaker.Breaker) *GuardedStore {
	return &GuardedStore{next: next, breaker: b}
}

const (
	keyWrite = "sessions.write"
	keyRead  = "sessions.read"
)

func (g *GuardedStore) guard(key string, fn func() error) error {
	var notFound bool
	err := g.breaker.Do(key, func() error {
		err := fn()
		if errors.Is(err, ErrNotFound) {
			notFound = true
			return nil
		}
		return err
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if notFound {
		return ErrNotFound
	}
	return err
}

func (g *GuardedStore) Save(ctx context.Context, s *Summary) error {
	return g.guard(keyWrite, func() error { return g.next.Save(ctx, s) })
}

func (g *GuardedStore) Get(ctx context.Context, id string) (*Summary, error) {
	var out *Summary
	err := g.guard(keyRead, func() error {
		var err error
		out, err = g.next.Get(ctx, id)
		return err
	})
	return out, err
}

func (g *GuardedStore) List(ctx context.Context, limit int, opts ...ListOption) ([]*Summary, error) {
	var out []*Summary
	err := g.guard(keyRead, func() error {
		var err error
		out, err = g.next.List(ctx, limit, opts...)
		return err
	})
	return out, err
}
