package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// DefaultScanBatchSize is the COUNT hint used by ScanKeys when batch <= 0.
const DefaultScanBatchSize = 100

// ScanKeys returns every key matching pattern using SCAN, so large keyspaces
// are walked incrementally instead of with KEYS. Keys may repeat if the
// keyspace changes during the walk.
func ScanKeys(ctx context.Context, client redis.Cmdable, pattern string, batch int64) ([]string, error) {
	if batch <= 0 {
		batch = DefaultScanBatchSize
	}

	var (
		keys   []string
		cursor uint64
	)
	for {
		page, next, err := client.Scan(ctx, cursor, pattern, batch).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, page...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}
