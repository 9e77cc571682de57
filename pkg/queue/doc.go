// Package queue provides a persistent, multi-queue background job engine:
// producers enqueue deferred units of work and workers execute them later,
// outside any request/response cycle.
//
// The package is organised around a few components:
//
//   - Message   : the stored description of one job: target, method, arguments,
//     scheduling window, retry policy and uniqueness flag
//   - Queue     : the contract a backing store implements (push, pop, fail,
//     complete, clear, reset, stats, queues)
//   - Worker    : polls one logical queue and runs messages one at a time
//   - Pool      : runs several independent workers, each with its own connection
//   - Manager   : named store configurations, cached queue instances and the
//     producer entry point Enqueue
//
// MemoryQueue lives here; the Redis and PostgreSQL stores live in the
// redisqueue and pgqueue subpackages.
//
// # Delivery
//
// Delivery is at-least-once. A message marked unique is dropped on push while
// an identical message (same target, method and arguments, in any key order)
// is already waiting. Delayed messages sit in a separate structure and are
// promoted into the ready structure by Pop once due. Ready messages are
// popped oldest first.
//
// # Jobs
//
// Targets resolve through a Registry at pop time:
//
//	reg := queue.NewRegistry()
//	_ = reg.Register("mailer", "send", func(ctx context.Context, args queue.Arguments) error {
//	    return send(ctx, args["to"].(string))
//	})
//
//	m := queue.NewManager(queue.WithDriver(redisqueue.Handler, redisqueue.Driver(redis.Config{}, log)))
//	_ = m.SetConfig("default", queue.QueueConfig{Handler: "redis", URL: "redis://localhost:6379/0"})
//
//	_, err := m.Enqueue(ctx, "mailer", queue.Arguments{"to": "a@b.c"},
//	    queue.WithMethod("send"),
//	    queue.WithDelay(time.Minute),
//	    queue.WithUnique(true),
//	)
//
// A job func returning nil succeeds. Returning an error that wraps ErrJobFailed
// is a soft failure; any other error, or a panic, is a hard failure. Both kinds
// of failure are retried while Message.ShouldRetry allows it. The attempt
// counter is stored with the message, so it survives worker restarts.
//
// # Workers
//
//	w, _ := queue.NewWorker(q, reg,
//	    queue.WithWorkerQueue("emails"),
//	    queue.WithMaxJobs(1000),
//	    queue.WithListeners(queue.NewLogListener(nil)),
//	)
//	err := w.Run(ctx)
//
// SIGTERM and SIGQUIT stop a running worker between jobs; a job in progress
// is never interrupted. Store failures end Run with an error wrapping
// ErrTransport.
//
// # Notifications
//
// Listeners implement any subset of StartListener, SuccessListener,
// FailureListener, ExceptionListener and InvalidListener. A panicking
// listener is recovered and logged.
//
// # Error Handling
//
// Setup errors wrap ErrConfiguration, store construction errors wrap
// ErrConnection. Check them with errors.Is.
package queue
