// internal/pkg/redisx/lock.go
package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// JobLock is a best-effort cross-process mutex for scheduled jobs. A nil
// client makes every acquire succeed.
type JobLock struct {
	client redis.Cmdable
	prefix string
}

func NewJobLock(client redis.Cmdable) *JobLock {
	return &JobLock{client: client, prefix: "lock:job:"}
}

// Acquire tries to take the lock for ttl. It returns a release func when
// the lock was taken, or ok=false when another process holds it.
func (l *JobLock) Acquire(ctx context.Context, job string, ttl time.Duration) (release func(), ok bool, err error) {
	if l == nil || l.client == nil {
		return func() {}, true, nil
	}

	key := l.prefix + job
	token := ulid.Make().String()

	ok, err = l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", job, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}
