// Package redis holds the connection helpers shared by the Redis-backed queue
// store.
//
// Connect parses a redis:// URL and retries the initial PING according to
// Config, which can be populated from REDIS_* environment variables with
// config.Load. ScanKeys walks a key pattern with SCAN.
//
//	cfg := redis.Config{ConnectionURL: "redis://localhost:6379/0", RetryAttempts: 3}
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
package redis
