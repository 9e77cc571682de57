// Package broadcast provides a generic, non-blocking publish/subscribe
// fan-out used to stream worker events to in-process observers.
//
// A MemoryBroadcaster never blocks the publisher: when a subscriber buffer is
// full the message is skipped for that subscriber and counted in Dropped.
// Subscriptions end when their context is done, when Close is called on the
// subscriber, or when the broadcaster itself is closed.
//
//	b := broadcast.NewMemoryBroadcaster[queue.Event](64)
//	sub := b.Subscribe(ctx)
//	for msg := range sub.Receive() {
//		fmt.Println(msg.Data.Kind)
//	}
package broadcast
