package observer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/taskflow/internal/testutil"
	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
	"github.com/vnykmshr/taskflow/pkg/task"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // Use a test database
	})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return rdb
}

func TestNewRedisRequiresClient(t *testing.T) {
	_, err := NewRedis(RedisConfig{})
	if !errors.Is(err, tferrors.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestRedisKeys(t *testing.T) {
	r, err := NewRedis(RedisConfig{Redis: redis.NewClient(&redis.Options{}), Prefix: "jobs"})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, r.TaskKey("abc"), "jobs:task:abc")
	testutil.AssertEqual(t, r.StateKey(task.Failed), "jobs:state:failed")
}

func TestRedisObserverMirrorsState(t *testing.T) {
	rdb := redisClient(t)
	ctx := context.Background()
	prefix := fmt.Sprintf("taskflow-test-%d", time.Now().UnixNano())

	r, err := NewRedis(RedisConfig{Redis: rdb, Prefix: prefix, TTL: time.Minute, InstanceID: "node-1"})
	testutil.AssertNoError(t, err)

	s := task.Snapshot{ID: "t1", State: task.Running, Attempts: 1, MaxAttempts: 2}
	testutil.AssertNoError(t, r.OnStarted(ctx, s))

	running, err := r.Members(ctx, task.Running)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(running), 1)

	s.State = task.Failed
	s.Error = "task: fatal: bad input"
	testutil.AssertNoError(t, r.OnFailed(ctx, s))

	got, err := r.Lookup(ctx, "t1")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, got.State, task.Failed)
	testutil.AssertEqual(t, got.Attempts, 1)
	testutil.AssertEqual(t, got.Error, s.Error)
	testutil.AssertEqual(t, got.Instance, "node-1")

	running, err = r.Members(ctx, task.Running)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(running), 0)

	ttl, err := rdb.TTL(ctx, r.TaskKey("t1")).Result()
	testutil.AssertNoError(t, err)
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("unexpected ttl %v", ttl)
	}

	_, err = r.Lookup(ctx, "missing")
	if !errors.Is(err, tferrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	rdb.Del(ctx, r.TaskKey("t1"), r.StateKey(task.Failed))
}
