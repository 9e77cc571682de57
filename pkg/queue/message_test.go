package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/jobq/pkg/queue"
)

var epoch = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewMessage(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		msg := queue.NewMessage("jobs.Send", queue.Arguments{"to": "a@b.c"}, queue.WithMessageClock(fixedClock(epoch)))

		assert.NotEmpty(t, msg.ID)
		assert.Equal(t, "jobs.Send", msg.Target)
		assert.Equal(t, queue.DefaultMethod, msg.Method)
		assert.Equal(t, queue.DefaultConfigKey, msg.Config)
		assert.Equal(t, queue.DefaultQueueName, msg.Queue)
		assert.True(t, msg.Retry)
		assert.Equal(t, queue.DefaultMaxRetries, msg.MaxRetries)
		assert.False(t, msg.Unique)
		assert.Zero(t, msg.Attempts)
		assert.Nil(t, msg.ReadyAt)
		assert.Nil(t, msg.ExpiresAt)
		assert.Equal(t, epoch, msg.CreatedAt)
	})

	t.Run("options", func(t *testing.T) {
		t.Parallel()
		msg := queue.NewMessage("jobs.Send", nil,
			queue.WithMessageClock(fixedClock(epoch)),
			queue.WithMethod("deliver"),
			queue.WithConfig("mail"),
			queue.WithQueue("emails"),
			queue.WithDelay(time.Minute),
			queue.WithExpires(time.Hour),
			queue.WithRetry(false),
			queue.WithMaxRetries(2),
			queue.WithUnique(true),
		)

		assert.Equal(t, "deliver", msg.Method)
		assert.Equal(t, "mail", msg.Config)
		assert.Equal(t, "emails", msg.Queue)
		require.NotNil(t, msg.ReadyAt)
		assert.Equal(t, epoch.Add(time.Minute), *msg.ReadyAt)
		require.NotNil(t, msg.ExpiresAt)
		assert.Equal(t, epoch.Add(time.Hour), *msg.ExpiresAt)
		assert.False(t, msg.Retry)
		assert.Equal(t, 2, msg.MaxRetries)
		assert.True(t, msg.Unique)
	})

	t.Run("explicit times win over durations", func(t *testing.T) {
		t.Parallel()
		at := epoch.Add(42 * time.Second)
		msg := queue.NewMessage("jobs.Send", nil,
			queue.WithMessageClock(fixedClock(epoch)),
			queue.WithDelay(time.Minute),
			queue.WithReadyAt(at),
			queue.WithExpires(time.Minute),
			queue.WithExpiresAt(at),
		)
		assert.Equal(t, at, *msg.ReadyAt)
		assert.Equal(t, at, *msg.ExpiresAt)
	})

	t.Run("empty names keep defaults", func(t *testing.T) {
		t.Parallel()
		msg := queue.NewMessage("jobs.Send", nil, queue.WithMethod(""), queue.WithQueue(""), queue.WithConfig(""))
		assert.Equal(t, queue.DefaultMethod, msg.Method)
		assert.Equal(t, queue.DefaultQueueName, msg.Queue)
		assert.Equal(t, queue.DefaultConfigKey, msg.Config)
	})

	t.Run("ids are unique", func(t *testing.T) {
		t.Parallel()
		assert.NotEqual(t, queue.NewMessage("a", nil).ID, queue.NewMessage("a", nil).ID)
	})
}

func TestMessage_Window(t *testing.T) {
	t.Parallel()

	msg := queue.NewMessage("jobs.Send", nil,
		queue.WithMessageClock(fixedClock(epoch)),
		queue.WithDelay(time.Minute),
		queue.WithExpires(time.Hour))

	assert.False(t, msg.IsReadyAt(epoch))
	assert.True(t, msg.IsReadyAt(epoch.Add(time.Minute)), "ready exactly at ready time")
	assert.False(t, msg.IsExpiredAt(epoch.Add(time.Hour)), "not expired exactly at expiry")
	assert.True(t, msg.IsExpiredAt(epoch.Add(time.Hour+time.Nanosecond)))

	open := queue.NewMessage("jobs.Send", nil)
	assert.True(t, open.IsReady())
	assert.False(t, open.IsExpired())
}

func TestMessage_ShouldRetry(t *testing.T) {
	t.Parallel()

	t.Run("consumes attempts up to max retries", func(t *testing.T) {
		t.Parallel()
		msg := queue.NewMessage("jobs.Flaky", nil, queue.WithMaxRetries(3))

		assert.True(t, msg.ShouldRetry())
		assert.True(t, msg.ShouldRetry())
		assert.False(t, msg.ShouldRetry())
		assert.Equal(t, 3, msg.Attempts)
	})

	t.Run("retry disabled", func(t *testing.T) {
		t.Parallel()
		msg := queue.NewMessage("jobs.Once", nil, queue.WithRetry(false))
		assert.False(t, msg.ShouldRetry())
		assert.Zero(t, msg.Attempts)
	})

	t.Run("expired message is not retried", func(t *testing.T) {
		t.Parallel()
		msg := queue.NewMessage("jobs.Old", nil, queue.WithExpires(-time.Second))
		assert.False(t, msg.ShouldRetry())
	})

	t.Run("expiry checked against the given time", func(t *testing.T) {
		t.Parallel()
		msg := queue.NewMessage("jobs.Old", nil, queue.WithMessageClock(fixedClock(epoch)), queue.WithExpires(time.Hour))
		assert.True(t, msg.ShouldRetryAt(epoch.Add(time.Hour)))
		assert.False(t, msg.ShouldRetryAt(epoch.Add(2*time.Hour)))
		assert.Equal(t, 1, msg.Attempts)
	})

	t.Run("zero max retries never retries", func(t *testing.T) {
		t.Parallel()
		msg := queue.NewMessage("jobs.Zero", nil, queue.WithMaxRetries(0))
		assert.False(t, msg.ShouldRetry())
	})
}

func TestMessage_ContentHash(t *testing.T) {
	t.Parallel()

	a := queue.NewMessage("jobs.Sync", queue.Arguments{"a": 1, "b": map[string]any{"x": 1, "y": 2}})
	b := queue.NewMessage("jobs.Sync", queue.Arguments{"b": map[string]any{"y": 2, "x": 1}, "a": 1},
		queue.WithQueue("other"), queue.WithDelay(time.Hour))

	assert.Equal(t, a.ContentHash(), b.ContentHash(), "argument order and scheduling do not matter")
	assert.NotEqual(t, a.ContentHash(), queue.NewMessage("jobs.Sync", queue.Arguments{"a": 2}).ContentHash())
	assert.NotEqual(t, a.ContentHash(), queue.NewMessage("jobs.Other", a.Arguments).ContentHash())
	assert.NotEqual(t, a.ContentHash(),
		queue.NewMessage("jobs.Sync", a.Arguments, queue.WithMethod("other")).ContentHash())
	assert.Equal(t, queue.NewMessage("jobs.Sync", nil).ContentHash(),
		queue.NewMessage("jobs.Sync", queue.Arguments{}).ContentHash())
}

func TestMessage_UniqueKey(t *testing.T) {
	t.Parallel()

	type account struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	msg := queue.NewMessage("jobs.Sync", queue.Arguments{"user": account{Name: "a", Age: 1}, "id": int64(1<<53 + 1)},
		queue.WithUnique(true))
	key := msg.UniqueKey()
	assert.Equal(t, msg.ContentHash(), key)
	assert.Equal(t, key, msg.UniqueHash)

	data, err := msg.Marshal()
	require.NoError(t, err)
	decoded, err := queue.UnmarshalMessage(data)
	require.NoError(t, err)

	assert.NotEqual(t, key, decoded.ContentHash(), "decoded arguments change shape")
	assert.Equal(t, key, decoded.UniqueKey(), "the recorded key is kept")
}

func TestMessage_Encoding(t *testing.T) {
	t.Parallel()

	msg := queue.NewMessage("jobs.Send", queue.Arguments{"n": 3, "tags": []any{"a"}},
		queue.WithDelay(time.Minute), queue.WithUnique(true))
	msg.Attempts = 2

	data, err := msg.Marshal()
	require.NoError(t, err)

	decoded, err := queue.UnmarshalMessage(data)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, decoded.ID)
	assert.Equal(t, 2, decoded.Attempts)
	assert.True(t, decoded.Unique)
	assert.Equal(t, float64(3), decoded.Arguments["n"])
	assert.True(t, msg.ReadyAt.Equal(*decoded.ReadyAt))
	assert.Equal(t, msg.ContentHash(), decoded.ContentHash())

	_, err = queue.UnmarshalMessage([]byte("{"))
	assert.ErrorIs(t, err, queue.ErrMalformedMessage)
}

func TestMessage_IsValid(t *testing.T) {
	t.Parallel()

	r := queue.NewRegistry()
	require.NoError(t, r.Register("jobs.Send", queue.DefaultMethod, func(ctx context.Context, _ queue.Arguments) error { return nil }))

	assert.True(t, queue.NewMessage("jobs.Send", nil).IsValid(r))
	assert.False(t, queue.NewMessage("jobs.Send", nil, queue.WithMethod("other")).IsValid(r))
	assert.False(t, queue.NewMessage("jobs.Missing", nil).IsValid(r))
	assert.False(t, queue.NewMessage("jobs.Send", nil).IsValid(nil))
}
