package observer

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
	"github.com/vnykmshr/taskflow/pkg/task"
)

// RedisConfig configures the Redis state mirror.
type RedisConfig struct {
	// Redis client used for all writes.
	Redis redis.UniversalClient

	// Prefix namespaces every key. Default "taskflow".
	Prefix string

	// TTL bounds how long a task's hash and state sets live after the
	// last update. Default 24h.
	TTL time.Duration

	// Timeout bounds each pipelined write. Default 1s.
	Timeout time.Duration

	// InstanceID identifies the process that ran the task.
	// Defaults to hostname and pid.
	InstanceID string
}

// RedisObserver mirrors task state into Redis so other processes can
// inspect it. Each task is a hash at <prefix>:task:<id>; the id is also a
// member of exactly one set <prefix>:state:<state>.
type RedisObserver struct {
	config RedisConfig
}

var allStates = []task.State{
	task.Pending,
	task.Running,
	task.Completed,
	task.Failed,
	task.Cancelled,
}

// NewRedis creates a Redis state mirror.
func NewRedis(config RedisConfig) (*RedisObserver, error) {
	if config.Redis == nil {
		return nil, tferrors.NewValidationError("observer", "redis", nil, "redis client is required")
	}
	if config.Prefix == "" {
		config.Prefix = "taskflow"
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Second
	}
	if config.InstanceID == "" {
		hostname, _ := os.Hostname()
		config.InstanceID = fmt.Sprintf("%s-%d", hostname, os.Getpid())
	}
	return &RedisObserver{config: config}, nil
}

// TaskKey returns the hash key for task id.
func (r *RedisObserver) TaskKey(id string) string {
	return r.config.Prefix + ":task:" + id
}

// StateKey returns the set key for state.
func (r *RedisObserver) StateKey(state task.State) string {
	return r.config.Prefix + ":state:" + state.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func (r *RedisObserver) write(ctx context.Context, ev Event, s task.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	key := r.TaskKey(s.ID)
	pipe := r.config.Redis.TxPipeline()

	pipe.HSet(ctx, key, map[string]interface{}{
		"state":        s.State.String(),
		"event":        ev.String(),
		"attempts":     s.Attempts,
		"max_attempts": s.MaxAttempts,
		"priority":     s.Priority,
		"class":        s.Class.String(),
		"error":        s.Error,
		"error_kind":   s.ErrKind.String(),
		"created_at":   formatTime(s.CreatedAt),
		"started_at":   formatTime(s.StartedAt),
		"completed_at": formatTime(s.CompletedAt),
		"instance":     r.config.InstanceID,
	})
	pipe.Expire(ctx, key, r.config.TTL)

	for _, st := range allStates {
		if st != s.State {
			pipe.SRem(ctx, r.StateKey(st), s.ID)
		}
	}
	stateKey := r.StateKey(s.State)
	pipe.SAdd(ctx, stateKey, s.ID)
	pipe.Expire(ctx, stateKey, r.config.TTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return tferrors.NewOperationError("observer", "redis."+ev.String(), err).WithContext("task " + s.ID)
	}
	return nil
}

func (r *RedisObserver) OnStarted(ctx context.Context, s task.Snapshot) error {
	return r.write(ctx, EventStarted, s)
}

func (r *RedisObserver) OnRetried(ctx context.Context, s task.Snapshot) error {
	return r.write(ctx, EventRetried, s)
}

func (r *RedisObserver) OnCompleted(ctx context.Context, s task.Snapshot) error {
	return r.write(ctx, EventCompleted, s)
}

func (r *RedisObserver) OnFailed(ctx context.Context, s task.Snapshot) error {
	return r.write(ctx, EventFailed, s)
}

func (r *RedisObserver) OnCancelled(ctx context.Context, s task.Snapshot) error {
	return r.write(ctx, EventCancelled, s)
}

// TaskState is the mirrored view of one task.
type TaskState struct {
	ID       string
	State    task.State
	Attempts int
	Error    string
	Instance string
}

// Lookup reads the mirrored state of task id.
// It returns errors.ErrNotFound when the task is unknown or expired.
func (r *RedisObserver) Lookup(ctx context.Context, id string) (TaskState, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	fields, err := r.config.Redis.HGetAll(ctx, r.TaskKey(id)).Result()
	if err != nil {
		return TaskState{}, tferrors.NewOperationError("observer", "redis.lookup", err)
	}
	if len(fields) == 0 {
		return TaskState{}, fmt.Errorf("task %s: %w", id, tferrors.ErrNotFound)
	}

	state, ok := task.ParseState(fields["state"])
	if !ok {
		return TaskState{}, fmt.Errorf("task %s: unknown mirrored state %q", id, fields["state"])
	}
	attempts, _ := strconv.Atoi(fields["attempts"])

	return TaskState{
		ID:       id,
		State:    state,
		Attempts: attempts,
		Error:    fields["error"],
		Instance: fields["instance"],
	}, nil
}

// Members returns the ids currently mirrored in state.
func (r *RedisObserver) Members(ctx context.Context, state task.State) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	ids, err := r.config.Redis.SMembers(ctx, r.StateKey(state)).Result()
	if err != nil {
		return nil, tferrors.NewOperationError("observer", "redis.members", err)
	}
	return ids, nil
}
