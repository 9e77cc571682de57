package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Message describes one deferred unit of work. It is the persisted form:
// every field round-trips through Marshal/UnmarshalMessage.
type Message struct {
	ID         uuid.UUID  `json:"id"`
	Target     string     `json:"target"`
	Method     string     `json:"method"`
	Arguments  Arguments  `json:"arguments,omitempty"`
	Config     string     `json:"config"`
	Queue      string     `json:"queue"`
	ReadyAt    *time.Time `json:"ready_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Retry      bool       `json:"retry"`
	MaxRetries int        `json:"max_retries"`
	Unique     bool       `json:"unique"`
	UniqueHash string     `json:"unique_hash,omitempty"`
	Attempts   int        `json:"attempts"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewMessage builds a message for target with the given arguments.
// It never fails: missing options fall back to defaults.
func NewMessage(target string, args Arguments, opts ...MessageOption) *Message {
	options := &messageOptions{
		method:     DefaultMethod,
		config:     DefaultConfigKey,
		queue:      DefaultQueueName,
		retry:      true,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(options)
	}

	now := time.Now()
	if options.now != nil {
		now = options.now()
	}

	msg := &Message{
		ID:         uuid.New(),
		Target:     target,
		Method:     options.method,
		Arguments:  args,
		Config:     options.config,
		Queue:      options.queue,
		ReadyAt:    options.readyAt,
		ExpiresAt:  options.expiresAt,
		Retry:      options.retry,
		MaxRetries: options.maxRetries,
		Unique:     options.unique,
		CreatedAt:  now,
	}

	// Explicit timestamps win over relative durations.
	if msg.ExpiresAt == nil && options.expires != 0 {
		t := now.Add(options.expires)
		msg.ExpiresAt = &t
	}
	if msg.ReadyAt == nil && options.delay != 0 {
		t := now.Add(options.delay)
		msg.ReadyAt = &t
	}

	return msg
}

// IsExpired reports whether the message can no longer be executed.
func (m *Message) IsExpired() bool {
	return m.IsExpiredAt(time.Now())
}

// IsExpiredAt reports whether the expiry time is set and t is past it.
func (m *Message) IsExpiredAt(t time.Time) bool {
	return m.ExpiresAt != nil && t.After(*m.ExpiresAt)
}

// IsReady reports whether the message may be handed to a worker now.
func (m *Message) IsReady() bool {
	return m.IsReadyAt(time.Now())
}

// IsReadyAt reports whether the ready time is unset or not after t.
func (m *Message) IsReadyAt(t time.Time) bool {
	return m.ReadyAt == nil || !t.Before(*m.ReadyAt)
}

// IsValid reports whether the target and method resolve to a job func.
// Workers check this at pop time, so a target removed after enqueue is
// dropped instead of failing the producer.
func (m *Message) IsValid(r Resolver) bool {
	if r == nil {
		return false
	}
	_, ok := r.Lookup(m.Target, m.Method)
	return ok
}

// ShouldRetry reports whether a failed message gets another run.
// Calling it consumes an attempt: the counter is incremented first and
// compared against MaxRetries, so the message runs at most MaxRetries times.
func (m *Message) ShouldRetry() bool {
	return m.ShouldRetryAt(time.Now())
}

// ShouldRetryAt is ShouldRetry with expiry checked against t.
func (m *Message) ShouldRetryAt(t time.Time) bool {
	if !m.Retry || m.IsExpiredAt(t) {
		return false
	}
	m.Attempts++
	return m.Attempts < m.MaxRetries
}

// ContentHash identifies the work a message describes: target, method and
// arguments, independent of argument order. Collisions are not mitigated.
func (m *Message) ContentHash() string {
	args := m.Arguments
	if args == nil {
		args = Arguments{}
	}

	// encoding/json writes map keys in sorted order at every depth.
	encoded, err := json.Marshal(args)
	if err != nil {
		encoded = fmt.Appendf(nil, "%v", args)
	}

	h := xxhash.New()
	_, _ = h.WriteString(m.Target)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(m.Method)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(encoded)

	return strconv.FormatUint(h.Sum64(), 16)
}

// UniqueKey returns the hash that guards a unique message in its queue.
// The first call computes ContentHash and stores it in UniqueHash, which is
// persisted with the message, so a store releases on pop exactly the key it
// recorded on push even if the arguments decode to a different shape.
func (m *Message) UniqueKey() string {
	if m.UniqueHash == "" {
		m.UniqueHash = m.ContentHash()
	}
	return m.UniqueHash
}

// Marshal encodes the message into its stored form.
func (m *Message) Marshal() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message %s for target %q: %w", m.ID, m.Target, err)
	}
	return data, nil
}

// UnmarshalMessage decodes a stored message.
func UnmarshalMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Join(ErrMalformedMessage, err)
	}
	return &m, nil
}
