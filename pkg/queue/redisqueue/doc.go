// Package redisqueue stores jobq queues in Redis.
//
// Each logical queue is a list of ready messages, a sorted set of delayed
// messages scored by their ready time in milliseconds, a set of content
// hashes for pending unique messages and three counters. Messages are pushed
// with LPUSH and popped with RPOP, so the oldest ready message runs first.
//
// Unique pushes run as a single Lua script: the hash is recorded and the
// payload stored atomically. Every Pop first promotes due delayed messages
// inside a WATCH/MULTI transaction on the delayed set; a conflicting writer
// makes the transaction retry a bounded number of times.
//
//	q, err := redisqueue.Connect(ctx, redis.Config{ConnectionURL: "redis://localhost:6379/0"},
//		redisqueue.WithPrefix("jobs"))
//	if err != nil {
//		return err
//	}
//	defer q.Close()
//
// In a queue.Manager the store is registered with
//
//	m.RegisterDriver(redisqueue.Handler, redisqueue.Driver(redisCfg, log))
package redisqueue
