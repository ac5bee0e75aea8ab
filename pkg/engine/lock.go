package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ExecutionLocker enforces the single-writer invariant: at most one engine
// traversal runs per execution ID at any time.
type ExecutionLocker interface {
	// Acquire takes the lock for an execution and returns its release
	// function. ErrExecutionLocked when another holder exists.
	Acquire(ctx context.Context, executionID string) (func(), error)
}

// lockTTL bounds how long a crashed worker can hold an execution hostage.
const lockTTL = 5 * time.Minute

// RedisLocker implements ExecutionLocker on Redis SET NX, so the invariant
// holds across processes.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker creates a locker backed by the given Redis client.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, executionID string) (func(), error) {
	key := "zapflow:execution-lock:" + executionID

	token, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate lock token: %w", err)
	}

	acquired, err := l.client.SetNX(ctx, key, token.String(), lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire execution lock: %w", err)
	}

	if !acquired {
		return nil, ErrExecutionLocked
	}

	release := func() {
		// Only the holder's token may release the lock.
		const script = `
			if redis.call("GET", KEYS[1]) == ARGV[1] then
				return redis.call("DEL", KEYS[1])
			end
			return 0
		`

		_ = l.client.Eval(context.Background(), script, []string{key}, token.String()).Err()
	}

	return release, nil
}

// MemoryLocker implements ExecutionLocker in process. Used by tests and the
// CLI dry-runner, where only one engine instance exists.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]struct{})}
}

func (l *MemoryLocker) Acquire(_ context.Context, executionID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.locks[executionID]; held {
		return nil, ErrExecutionLocked
	}

	l.locks[executionID] = struct{}{}

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		delete(l.locks, executionID)
	}

	return release, nil
}
