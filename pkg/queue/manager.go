package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/jobq/pkg/logger"
)

// Driver builds a queue for one registry entry.
type Driver func(ctx context.Context, key string, cfg QueueConfig) (Queue, error)

// Manager owns the named queue configurations and the queue instances built
// from them. It replaces any global registry: create one and pass it around.
type Manager struct {
	mu        sync.Mutex
	drivers   map[string]Driver
	listeners map[string]Listener
	configs   map[string]QueueConfig
	instances map[string]Queue
	loading   singleflight.Group
	logger    *slog.Logger
}

// ManagerOption is a functional option for configuring a Manager
type ManagerOption func(*Manager)

// WithDriver registers a driver under a handler name
func WithDriver(handler string, d Driver) ManagerOption {
	return func(m *Manager) {
		if handler != "" && d != nil {
			m.drivers[handler] = d
		}
	}
}

// WithNamedListener registers a listener that configs can reference by name
func WithNamedListener(name string, l Listener) ManagerOption {
	return func(m *Manager) {
		if name != "" && l != nil {
			m.listeners[name] = l
		}
	}
}

// WithManagerLogger sets the logger for the manager
func WithManagerLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.logger = log
		}
	}
}

// NewManager creates a manager with the built-in "memory" driver
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		drivers:   map[string]Driver{"memory": MemoryDriver},
		listeners: make(map[string]Listener),
		configs:   make(map[string]QueueConfig),
		instances: make(map[string]Queue),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(logger.Component("queue.manager"))
	return m
}

// RegisterDriver registers or replaces a driver
func (m *Manager) RegisterDriver(handler string, d Driver) error {
	if handler == "" || d == nil {
		return errors.Join(ErrConfiguration, ErrInvalidConfig, errors.New("driver needs a handler name and a func"))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[handler] = d
	return nil
}

// RegisterListener registers or replaces a named listener
func (m *Manager) RegisterListener(name string, l Listener) error {
	if name == "" || l == nil {
		return errors.Join(ErrConfiguration, ErrInvalidConfig, errors.New("listener needs a name and a value"))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners[name] = l
	return nil
}

// SetConfig adds a named configuration. Keys are never overwritten.
func (m *Manager) SetConfig(key string, cfg QueueConfig) error {
	if key == "" {
		return errors.Join(ErrConfiguration, ErrInvalidConfig, errors.New("empty config key"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.configs[key]; exists {
		return errors.Join(ErrConfiguration, ErrConfigExists, fmt.Errorf("key %q", key))
	}
	m.configs[key] = cfg
	return nil
}

// LoadConfigs adds every entry of configs in key order, stopping at the first error
func (m *Manager) LoadConfigs(configs map[string]QueueConfig) error {
	for _, key := range slices.Sorted(maps.Keys(configs)) {
		if err := m.SetConfig(key, configs[key]); err != nil {
			return err
		}
	}
	return nil
}

// Config returns the configuration stored under key
func (m *Manager) Config(key string) (QueueConfig, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.configs[key]
	return cfg, ok
}

// Configs returns the configured keys in sorted order
func (m *Manager) Configs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Sorted(maps.Keys(m.configs))
}

// HasConfig reports whether key is configured
func (m *Manager) HasConfig(key string) bool {
	_, ok := m.Config(key)
	return ok
}

// IsLoaded reports whether a shared instance exists for key
func (m *Manager) IsLoaded(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.instances[key]
	return ok
}

// Use returns the shared queue for key, building it on first use.
// Drivers run outside the manager lock, and concurrent first calls for one
// key share a single build.
func (m *Manager) Use(ctx context.Context, key string) (Queue, error) {
	m.mu.Lock()
	q, loaded := m.instances[key]
	cfg, ok := m.configs[key]
	m.mu.Unlock()

	if loaded {
		return q, nil
	}
	if !ok {
		return nil, errors.Join(ErrConfiguration, ErrConfigNotFound, fmt.Errorf("key %q", key))
	}

	v, err, _ := m.loading.Do(key, func() (any, error) {
		m.mu.Lock()
		q, loaded := m.instances[key]
		m.mu.Unlock()
		if loaded {
			return q, nil
		}

		q, err := m.build(ctx, key, cfg)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		_, still := m.configs[key]
		if still {
			m.instances[key] = q
		}
		m.mu.Unlock()

		// Unloaded while the driver was dialing.
		if !still {
			_ = q.Close()
			return nil, errors.Join(ErrConfiguration, ErrConfigNotFound, fmt.Errorf("key %q", key))
		}

		m.logger.DebugContext(ctx, "queue loaded",
			slog.String("key", key),
			slog.String("handler", cfg.Handler))
		return q, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Queue), nil
}

// Open builds a fresh, uncached queue for key. The caller owns and closes it.
// Pools use it so that every worker gets its own store connection.
func (m *Manager) Open(ctx context.Context, key string) (Queue, error) {
	cfg, ok := m.Config(key)
	if !ok {
		return nil, errors.Join(ErrConfiguration, ErrConfigNotFound, fmt.Errorf("key %q", key))
	}
	return m.build(ctx, key, cfg)
}

// Opener returns an Opener bound to key
func (m *Manager) Opener(key string) Opener {
	return func(ctx context.Context) (Queue, error) {
		return m.Open(ctx, key)
	}
}

// Listeners resolves the listener names configured for key
func (m *Manager) Listeners(key string) ([]Listener, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.configs[key]
	if !ok {
		return nil, errors.Join(ErrConfiguration, ErrConfigNotFound, fmt.Errorf("key %q", key))
	}

	listeners := make([]Listener, 0, len(cfg.Listeners))
	for _, name := range cfg.Listeners {
		l, ok := m.listeners[name]
		if !ok {
			return nil, errors.Join(ErrConfiguration, ErrUnknownListener, fmt.Errorf("listener %q in config %q", name, key))
		}
		listeners = append(listeners, l)
	}
	return listeners, nil
}

// Unload closes the shared instance for key and forgets its configuration
func (m *Manager) Unload(key string) error {
	m.mu.Lock()
	q, loaded := m.instances[key]
	delete(m.instances, key)
	delete(m.configs, key)
	m.mu.Unlock()

	if loaded {
		return q.Close()
	}
	return nil
}

// Clear closes every instance and forgets every configuration.
// Drivers and listeners stay registered.
func (m *Manager) Clear() error {
	err := m.Close()

	m.mu.Lock()
	clear(m.configs)
	m.mu.Unlock()

	return err
}

// Close closes every shared instance
func (m *Manager) Close() error {
	m.mu.Lock()
	instances := m.instances
	m.instances = make(map[string]Queue)
	m.mu.Unlock()

	var errs []error
	for key, q := range instances {
		if err := q.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close queue %q: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Enqueue builds a message for target and pushes it to the queue configured
// under the message's config key. It reports whether the message was enqueued.
func (m *Manager) Enqueue(ctx context.Context, target string, args Arguments, opts ...MessageOption) (bool, error) {
	msg := NewMessage(target, args, opts...)

	q, err := m.Use(ctx, msg.Config)
	if err != nil {
		return false, err
	}

	ok, err := q.Push(ctx, msg)
	if err != nil {
		return false, fmt.Errorf("failed to push message for target %q to queue %q: %w", msg.Target, msg.Queue, err)
	}
	return ok, nil
}

func (m *Manager) build(ctx context.Context, key string, cfg QueueConfig) (Queue, error) {
	if cfg.Handler == "" {
		return nil, errors.Join(ErrConfiguration, ErrInvalidConfig, fmt.Errorf("config %q has no handler", key))
	}
	m.mu.Lock()
	d, ok := m.drivers[cfg.Handler]
	m.mu.Unlock()
	if !ok {
		return nil, errors.Join(ErrConfiguration, ErrUnknownHandler, fmt.Errorf("handler %q in config %q", cfg.Handler, key))
	}
	q, err := d(ctx, key, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build queue %q: %w", key, err)
	}
	return q, nil
}
