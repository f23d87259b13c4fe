package utils

import (
	"context"
	"time"
)

const statsKeyTTL = 48 * time.Hour

// Daily traffic counters kept in Redis. Best-effort: a missing or down
// Redis must never fail an upload or a fetch, so errors are logged at
// debug and swallowed.

// CountUpload increments today's upload counter.
func CountUpload() {
	incrDaily("stats:uploads:")
}

// CountFetch increments today's fetch counter.
func CountFetch() {
	incrDaily("stats:fetches:")
}

// TodayUploads returns today's upload counter, zero when unavailable.
func TodayUploads() int64 {
	return readDaily("stats:uploads:")
}

// TodayFetches returns today's fetch counter, zero when unavailable.
func TodayFetches() int64 {
	return readDaily("stats:fetches:")
}

func incrDaily(prefix string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	key := prefix + time.Now().Format("2006-01-02")
	if err := rc.Incr(ctx, key).Err(); err != nil {
		if Sugar != nil {
			Sugar.Debugf("stats incr failed key=%s err=%v", key, err)
		}
		return
	}
	// Expiry keeps old day keys from piling up; refreshing it on every
	// increment is harmless.
	_ = rc.Expire(ctx, key, statsKeyTTL).Err()
}

func readDaily(prefix string) int64 {
	rc := GetRedis()
	if rc == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	key := prefix + time.Now().Format("2006-01-02")
	n, err := rc.Get(ctx, key).Int64()
	if err != nil {
		if Sugar != nil {
			Sugar.Debugf("stats get miss key=%s err=%v", key, err)
		}
		return 0
	}
	return n
}
