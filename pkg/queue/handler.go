package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Func executes one job. Returning nil marks success, returning an error that
// wraps ErrJobFailed marks a soft failure, any other error (or a panic) is a
// hard failure.
type Func func(ctx context.Context, args Arguments) error

// Resolver maps a target identity and method to a job func.
type Resolver interface {
	Lookup(target, method string) (Func, bool)
}

// Registry is a Resolver backed by explicit registrations.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	targets map[string]map[string]Func
}

// NewRegistry creates an empty target registry
func NewRegistry() *Registry {
	return &Registry{targets: make(map[string]map[string]Func)}
}

// Register binds fn to target.method
func (r *Registry) Register(target, method string, fn Func) error {
	if target == "" || method == "" || fn == nil {
		return ErrInvalidTarget
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	methods, ok := r.targets[target]
	if !ok {
		methods = make(map[string]Func)
		r.targets[target] = methods
	}
	if _, exists := methods[method]; exists {
		return fmt.Errorf("%w: %s.%s", ErrTargetAlreadyRegistered, target, method)
	}
	methods[method] = fn
	return nil
}

// RegisterTarget binds several methods of one target at once.
// Registration stops at the first error.
func (r *Registry) RegisterTarget(target string, methods map[string]Func) error {
	if len(methods) == 0 {
		return ErrInvalidTarget
	}
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if err := r.Register(target, name, methods[name]); err != nil {
			return err
		}
	}
	return nil
}

// Lookup implements Resolver
func (r *Registry) Lookup(target, method string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.targets[target][method]
	return fn, ok
}

// Targets returns the registered target identities in sorted order
func (r *Registry) Targets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.targets))
	for name := range r.targets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Typed adapts a func taking a struct payload. Arguments are decoded into T
// through JSON, so T's json tags name the argument keys.
func Typed[T any](fn func(ctx context.Context, payload T) error) Func {
	return func(ctx context.Context, args Arguments) error {
		var payload T
		raw, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("failed to encode arguments for %T: %w", payload, err)
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("failed to decode arguments into %T: %w", payload, err)
		}
		return fn(ctx, payload)
	}
}

// Handle registers a typed func under the qualified name of T and the
// default method. Producers address it with TargetOf(T{}).
func Handle[T any](r *Registry, fn func(ctx context.Context, payload T) error) error {
	if r == nil {
		return ErrResolverNil
	}
	if fn == nil {
		return ErrInvalidTarget
	}
	var payload T
	return r.Register(TargetOf(payload), DefaultMethod, Typed(fn))
}

// TargetOf returns the target identity Handle uses for values of v's type
func TargetOf(v any) string {
	return strings.TrimLeft(fmt.Sprintf("%T", v), "*")
}

// invoke runs fn, turning a panic into an error wrapping ErrJobPanicked.
func invoke(ctx context.Context, fn Func, args Arguments) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok {
				err = errors.Join(ErrJobPanicked, rerr)
				return
			}
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return fn(ctx, args)
}
