package queue_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/jobq/pkg/queue"
)

type welcomeEmail struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
}

func noop(context.Context, queue.Arguments) error { return nil }

func TestRegistry(t *testing.T) {
	t.Parallel()

	t.Run("register and lookup", func(t *testing.T) {
		t.Parallel()
		r := queue.NewRegistry()
		require.NoError(t, r.Register("jobs.Send", "run", noop))
		require.NoError(t, r.Register("jobs.Send", "retry", noop))

		_, ok := r.Lookup("jobs.Send", "run")
		assert.True(t, ok)
		_, ok = r.Lookup("jobs.Send", "missing")
		assert.False(t, ok)
		_, ok = r.Lookup("jobs.Missing", "run")
		assert.False(t, ok)
	})

	t.Run("duplicate registration", func(t *testing.T) {
		t.Parallel()
		r := queue.NewRegistry()
		require.NoError(t, r.Register("jobs.Send", "run", noop))
		assert.ErrorIs(t, r.Register("jobs.Send", "run", noop), queue.ErrTargetAlreadyRegistered)
	})

	t.Run("invalid registration", func(t *testing.T) {
		t.Parallel()
		r := queue.NewRegistry()
		assert.ErrorIs(t, r.Register("", "run", noop), queue.ErrInvalidTarget)
		assert.ErrorIs(t, r.Register("jobs.Send", "", noop), queue.ErrInvalidTarget)
		assert.ErrorIs(t, r.Register("jobs.Send", "run", nil), queue.ErrInvalidTarget)
		assert.ErrorIs(t, r.RegisterTarget("jobs.Send", nil), queue.ErrInvalidTarget)
	})

	t.Run("register target methods", func(t *testing.T) {
		t.Parallel()
		r := queue.NewRegistry()
		require.NoError(t, r.RegisterTarget("jobs.Report", map[string]queue.Func{
			"daily":  noop,
			"weekly": noop,
		}))
		require.NoError(t, r.Register("jobs.Alpha", "run", noop))

		assert.Equal(t, []string{"jobs.Alpha", "jobs.Report"}, r.Targets())
		_, ok := r.Lookup("jobs.Report", "weekly")
		assert.True(t, ok)
	})
}

func TestHandle(t *testing.T) {
	t.Parallel()

	r := queue.NewRegistry()

	var got welcomeEmail
	require.NoError(t, queue.Handle(r, func(_ context.Context, p welcomeEmail) error {
		got = p
		return nil
	}))

	target := queue.TargetOf(welcomeEmail{})
	assert.Equal(t, "queue_test.welcomeEmail", target)
	assert.Equal(t, target, queue.TargetOf(&welcomeEmail{}))

	fn, ok := r.Lookup(target, queue.DefaultMethod)
	require.True(t, ok)

	// arguments arrive JSON-decoded from the store
	require.NoError(t, fn(context.Background(), queue.Arguments{"user_id": "u1", "count": float64(3)}))
	assert.Equal(t, welcomeEmail{UserID: "u1", Count: 3}, got)

	err := fn(context.Background(), queue.Arguments{"count": "three"})
	assert.Error(t, err)

	assert.ErrorIs(t, queue.Handle[welcomeEmail](nil, nil), queue.ErrResolverNil)
	assert.ErrorIs(t, queue.Handle[welcomeEmail](r, nil), queue.ErrInvalidTarget)
	assert.ErrorIs(t, queue.Handle(r, func(context.Context, welcomeEmail) error { return nil }),
		queue.ErrTargetAlreadyRegistered)
}

func TestTyped_PropagatesError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	fn := queue.Typed(func(context.Context, welcomeEmail) error { return boom })
	assert.ErrorIs(t, fn(context.Background(), nil), boom)
}
