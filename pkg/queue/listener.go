package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/jobq/pkg/broadcast"
	"github.com/dmitrymomot/jobq/pkg/logger"
)

// Listener receives terminal job notifications. It may implement any subset
// of StartListener, SuccessListener, FailureListener, ExceptionListener and
// InvalidListener, including none of them.
type Listener any

type (
	// StartListener is notified right before a job func is invoked
	StartListener interface {
		OnStart(ctx context.Context, msg *Message)
	}

	// SuccessListener is notified after a job completed
	SuccessListener interface {
		OnSuccess(ctx context.Context, msg *Message)
	}

	// FailureListener is notified after a job reported ErrJobFailed
	FailureListener interface {
		OnFailure(ctx context.Context, msg *Message, retried bool)
	}

	// ExceptionListener is notified after a job returned an error or panicked
	ExceptionListener interface {
		OnException(ctx context.Context, msg *Message, err error, retried bool)
	}

	// InvalidListener is notified when a popped message has no job func
	InvalidListener interface {
		OnInvalid(ctx context.Context, msg *Message)
	}
)

// EventKind names a terminal notification
type EventKind string

// Notification kinds, one per listener interface.
const (
	EventStart     EventKind = "start"
	EventSuccess   EventKind = "success"
	EventFailure   EventKind = "failure"
	EventException EventKind = "exception"
	EventInvalid   EventKind = "invalid"
)

// Event is the value form of a notification, used by BroadcastListener.
type Event struct {
	Kind    EventKind
	Message *Message
	Err     error
	Retried bool
	At      time.Time
}

// ListenerFuncs implements every listener interface with optional funcs.
// Nil fields are skipped.
type ListenerFuncs struct {
	Start     func(ctx context.Context, msg *Message)
	Success   func(ctx context.Context, msg *Message)
	Failure   func(ctx context.Context, msg *Message, retried bool)
	Exception func(ctx context.Context, msg *Message, err error, retried bool)
	Invalid   func(ctx context.Context, msg *Message)
}

// OnStart calls Start
func (f ListenerFuncs) OnStart(ctx context.Context, msg *Message) {
	if f.Start != nil {
		f.Start(ctx, msg)
	}
}

// OnSuccess calls Success
func (f ListenerFuncs) OnSuccess(ctx context.Context, msg *Message) {
	if f.Success != nil {
		f.Success(ctx, msg)
	}
}

// OnFailure calls Failure
func (f ListenerFuncs) OnFailure(ctx context.Context, msg *Message, retried bool) {
	if f.Failure != nil {
		f.Failure(ctx, msg, retried)
	}
}

// OnException calls Exception
func (f ListenerFuncs) OnException(ctx context.Context, msg *Message, err error, retried bool) {
	if f.Exception != nil {
		f.Exception(ctx, msg, err, retried)
	}
}

// OnInvalid calls Invalid
func (f ListenerFuncs) OnInvalid(ctx context.Context, msg *Message) {
	if f.Invalid != nil {
		f.Invalid(ctx, msg)
	}
}

// BroadcastListener publishes every notification as an Event.
// Slow subscribers lose events rather than blocking the worker.
type BroadcastListener struct {
	b broadcast.Broadcaster[Event]
}

// NewBroadcastListener wraps b as a listener
func NewBroadcastListener(b broadcast.Broadcaster[Event]) *BroadcastListener {
	return &BroadcastListener{b: b}
}

// OnStart publishes an EventStart
func (l *BroadcastListener) OnStart(ctx context.Context, msg *Message) {
	l.publish(ctx, Event{Kind: EventStart, Message: msg})
}

// OnSuccess publishes an EventSuccess
func (l *BroadcastListener) OnSuccess(ctx context.Context, msg *Message) {
	l.publish(ctx, Event{Kind: EventSuccess, Message: msg})
}

// OnFailure publishes an EventFailure
func (l *BroadcastListener) OnFailure(ctx context.Context, msg *Message, retried bool) {
	l.publish(ctx, Event{Kind: EventFailure, Message: msg, Retried: retried})
}

// OnException publishes an EventException carrying err
func (l *BroadcastListener) OnException(ctx context.Context, msg *Message, err error, retried bool) {
	l.publish(ctx, Event{Kind: EventException, Message: msg, Err: err, Retried: retried})
}

// OnInvalid publishes an EventInvalid
func (l *BroadcastListener) OnInvalid(ctx context.Context, msg *Message) {
	l.publish(ctx, Event{Kind: EventInvalid, Message: msg})
}

func (l *BroadcastListener) publish(ctx context.Context, ev Event) {
	if l.b == nil {
		return
	}
	ev.At = time.Now()
	_ = l.b.Broadcast(ctx, broadcast.Message[Event]{Data: ev})
}

// LogListener writes every notification to a slog logger.
type LogListener struct {
	log *slog.Logger
}

// NewLogListener creates a logging listener; nil uses slog.Default()
func NewLogListener(log *slog.Logger) *LogListener {
	if log == nil {
		log = slog.Default()
	}
	return &LogListener{log: log}
}

// OnStart logs at debug level
func (l *LogListener) OnStart(ctx context.Context, msg *Message) {
	l.log.DebugContext(ctx, "job started", messageAttrs(msg)...)
}

// OnSuccess logs at info level
func (l *LogListener) OnSuccess(ctx context.Context, msg *Message) {
	l.log.InfoContext(ctx, "job succeeded", messageAttrs(msg)...)
}

// OnFailure logs at warn level
func (l *LogListener) OnFailure(ctx context.Context, msg *Message, retried bool) {
	l.log.WarnContext(ctx, "job failed",
		append(messageAttrs(msg), slog.Bool("retried", retried))...)
}

// OnException logs the error at error level
func (l *LogListener) OnException(ctx context.Context, msg *Message, err error, retried bool) {
	l.log.ErrorContext(ctx, "job raised an error",
		append(messageAttrs(msg), slog.Bool("retried", retried), logger.Error(err))...)
}

// OnInvalid logs at warn level
func (l *LogListener) OnInvalid(ctx context.Context, msg *Message) {
	l.log.WarnContext(ctx, "job target not found", messageAttrs(msg)...)
}

func messageAttrs(msg *Message) []any {
	return []any{
		logger.MessageID(msg.ID.String()),
		logger.Queue(msg.Queue),
		logger.Target(msg.Target),
		logger.Method(msg.Method),
		logger.Attempt(msg.Attempts),
	}
}

// notifier fans notifications out to listeners, isolating each call so a
// panicking listener cannot break the worker loop.
type notifier struct {
	listeners []Listener
	log       *slog.Logger
}

func (n *notifier) start(ctx context.Context, msg *Message) {
	for _, l := range n.listeners {
		if sl, ok := l.(StartListener); ok {
			n.safely(ctx, EventStart, func() { sl.OnStart(ctx, msg) })
		}
	}
}

func (n *notifier) success(ctx context.Context, msg *Message) {
	for _, l := range n.listeners {
		if sl, ok := l.(SuccessListener); ok {
			n.safely(ctx, EventSuccess, func() { sl.OnSuccess(ctx, msg) })
		}
	}
}

func (n *notifier) failure(ctx context.Context, msg *Message, retried bool) {
	for _, l := range n.listeners {
		if fl, ok := l.(FailureListener); ok {
			n.safely(ctx, EventFailure, func() { fl.OnFailure(ctx, msg, retried) })
		}
	}
}

func (n *notifier) exception(ctx context.Context, msg *Message, err error, retried bool) {
	for _, l := range n.listeners {
		if el, ok := l.(ExceptionListener); ok {
			n.safely(ctx, EventException, func() { el.OnException(ctx, msg, err, retried) })
		}
	}
}

func (n *notifier) invalid(ctx context.Context, msg *Message) {
	for _, l := range n.listeners {
		if il, ok := l.(InvalidListener); ok {
			n.safely(ctx, EventInvalid, func() { il.OnInvalid(ctx, msg) })
		}
	}
}

func (n *notifier) safely(ctx context.Context, kind EventKind, call func()) {
	defer func() {
		if r := recover(); r != nil {
			n.log.ErrorContext(ctx, "queue listener panicked",
				logger.Event(string(kind)),
				slog.Any("panic", r))
		}
	}()
	call()
}
