package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
	"github.com/vnykmshr/taskflow/pkg/common/validation"
	"github.com/vnykmshr/taskflow/pkg/metrics"
	"github.com/vnykmshr/taskflow/pkg/scheduling/engine"
	"github.com/vnykmshr/taskflow/pkg/task"
)

// LabelScheduleID is added to the labels of every task a schedule submits.
const LabelScheduleID = "schedule_id"

const maxIDLength = 255

// ErrDuplicateJob is returned when a job id is already registered.
var ErrDuplicateJob = errors.New("scheduler: job already exists")

// Submitter accepts tasks for execution. *engine.Engine implements it.
type Submitter interface {
	Submit(exec task.Executable, opts ...engine.SubmitOption) (string, error)
}

// Job describes a registered schedule.
type Job struct {
	ID       string
	NextRun  time.Time
	Interval time.Duration // zero for one-shot and cron jobs
	CronExpr string        // empty unless scheduled with ScheduleCron
	Created  time.Time

	// Fires counts firings the engine accepted.
	Fires int
	// LastTaskID is the id of the most recently submitted task.
	LastTaskID string
}

// Scheduler submits tasks into an engine at given times, on fixed
// intervals, or on cron schedules. Every firing is a fresh task.
type Scheduler interface {
	// Basic scheduling
	Schedule(id string, exec task.Executable, runAt time.Time, opts ...engine.SubmitOption) error
	ScheduleAfter(id string, exec task.Executable, delay time.Duration, opts ...engine.SubmitOption) error
	ScheduleRepeating(id string, exec task.Executable, interval time.Duration, opts ...engine.SubmitOption) error

	// Cron scheduling
	ScheduleCron(id string, cronExpr string, exec task.Executable, opts ...engine.SubmitOption) error

	// Job management
	Cancel(id string) bool
	CancelAll()
	List() []Job

	// Lifecycle
	Start(ctx context.Context) error
	Stop() <-chan struct{}
}

// Config holds scheduler configuration.
type Config struct {
	// Engine receives every firing. Required.
	Engine Submitter

	// Name labels logs and metrics. Default "default".
	Name string

	Location     *time.Location // for cron evaluation (default: time.Local)
	TickInterval time.Duration  // how often to check for due jobs (default: 50ms)
	MaxJobs      int            // maximum number of registered jobs (default: 10000)

	Logger  *zap.Logger
	Metrics metrics.Config

	// Clock supplies the current time. Default time.Now.
	Clock func() time.Time
}

type scheduledJob struct {
	id       string
	exec     task.Executable
	opts     []engine.SubmitOption
	runAt    time.Time
	interval time.Duration
	cronExpr string
	schedule cron.Schedule
	created  time.Time
	fires    int
	lastTask string
}

type scheduler struct {
	engine       Submitter
	name         string
	location     *time.Location
	tickInterval time.Duration
	maxJobs      int
	logger       *zap.Logger
	registry     *metrics.Registry
	clock        func() time.Time

	mu      sync.RWMutex
	jobs    map[string]*scheduledJob
	started bool
	running bool
	done    chan struct{}
	exited  chan struct{}
}

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseCron parses a cron expression. Five-field expressions, an optional
// leading seconds field and descriptors such as "@hourly" or "@every 5m"
// are accepted.
func ParseCron(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, tferrors.NewValidationError("scheduler", "cron_expr", expr, "cannot be empty").
			WithHint(`use a five-field expression such as "*/5 * * * *" or a descriptor such as "@hourly"`)
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, tferrors.NewValidationError("scheduler", "cron_expr", expr, err.Error())
	}
	return schedule, nil
}

// NextRuns returns the next n activation times of expr after from.
func NextRuns(expr string, from time.Time, n int) ([]time.Time, error) {
	schedule, err := ParseCron(expr)
	if err != nil {
		return nil, err
	}
	runs := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		from = schedule.Next(from)
		if from.IsZero() {
			break
		}
		runs = append(runs, from)
	}
	return runs, nil
}

// New creates a scheduler that submits into cfg.Engine.
func New(cfg Config) (Scheduler, error) {
	if err := validation.ValidateNotNil("scheduler", "engine", cfg.Engine); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeDuration("scheduler", "tick_interval", cfg.TickInterval); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegative("scheduler", "max_jobs", float64(cfg.MaxJobs)); err != nil {
		return nil, err
	}

	name := cfg.Name
	if name == "" {
		name = engine.DefaultName
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	tickInterval := cfg.TickInterval
	if tickInterval == 0 {
		tickInterval = 50 * time.Millisecond
	}

	maxJobs := cfg.MaxJobs
	if maxJobs == 0 {
		maxJobs = 10000
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &scheduler{
		engine:       cfg.Engine,
		name:         name,
		location:     location,
		tickInterval: tickInterval,
		maxJobs:      maxJobs,
		logger:       logger.With(zap.String("scheduler", name)),
		registry:     metrics.FromConfig(cfg.Metrics),
		clock:        clock,
		jobs:         make(map[string]*scheduledJob),
		done:         make(chan struct{}),
		exited:       make(chan struct{}),
	}, nil
}

func validateJob(id string, exec task.Executable) error {
	if err := validation.ValidateNotEmpty("scheduler", "id", id); err != nil {
		return err
	}
	if len(id) > maxIDLength {
		return tferrors.NewValidationError("scheduler", "id", len(id), "too long").
			WithHint(fmt.Sprintf("ids are limited to %d characters", maxIDLength))
	}
	if exec == nil {
		return tferrors.NewValidationError("scheduler", "exec", nil, "cannot be nil").
			WithHint("wrap a function with task.Func")
	}
	return nil
}

func (s *scheduler) add(j *scheduledJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[j.id]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateJob, j.id)
	}
	if len(s.jobs) >= s.maxJobs {
		return fmt.Errorf("scheduler: maximum number of jobs (%d) reached: %w", s.maxJobs, tferrors.ErrCapacityExceeded)
	}

	j.created = s.clock()
	s.jobs[j.id] = j
	s.updateGauge()

	s.logger.Debug("job scheduled",
		zap.String("job_id", j.id),
		zap.Time("next_run", j.runAt))
	return nil
}

func (s *scheduler) Schedule(id string, exec task.Executable, runAt time.Time, opts ...engine.SubmitOption) error {
	if err := validateJob(id, exec); err != nil {
		return err
	}
	if runAt.IsZero() {
		return tferrors.NewValidationError("scheduler", "run_at", runAt, "cannot be zero")
	}
	return s.add(&scheduledJob{id: id, exec: exec, opts: opts, runAt: runAt})
}

func (s *scheduler) ScheduleAfter(id string, exec task.Executable, delay time.Duration, opts ...engine.SubmitOption) error {
	if err := validation.ValidateNonNegativeDuration("scheduler", "delay", delay); err != nil {
		return err
	}
	return s.Schedule(id, exec, s.clock().Add(delay), opts...)
}

// ScheduleRepeating fires immediately and then every interval.
func (s *scheduler) ScheduleRepeating(id string, exec task.Executable, interval time.Duration, opts ...engine.SubmitOption) error {
	if err := validateJob(id, exec); err != nil {
		return err
	}
	if interval <= 0 {
		return tferrors.NewValidationError("scheduler", "interval", interval, "must be positive")
	}
	return s.add(&scheduledJob{id: id, exec: exec, opts: opts, runAt: s.clock(), interval: interval})
}

func (s *scheduler) ScheduleCron(id string, cronExpr string, exec task.Executable, opts ...engine.SubmitOption) error {
	if err := validateJob(id, exec); err != nil {
		return err
	}
	schedule, err := ParseCron(cronExpr)
	if err != nil {
		return err
	}
	next := schedule.Next(s.clock().In(s.location))
	if next.IsZero() {
		return tferrors.NewValidationError("scheduler", "cron_expr", cronExpr, "never matches").
			WithHint("check the day of month against the month, e.g. February has no 30th")
	}
	return s.add(&scheduledJob{
		id:       id,
		exec:     exec,
		opts:     opts,
		runAt:    next,
		cronExpr: cronExpr,
		schedule: schedule,
	})
}

// Cancel removes a job. Tasks it already submitted are unaffected.
func (s *scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		delete(s.jobs, id)
		s.updateGauge()
		return true
	}
	return false
}

func (s *scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = make(map[string]*scheduledJob)
	s.updateGauge()
}

// List returns the registered jobs ordered by next run time.
func (s *scheduler) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, Job{
			ID:         j.id,
			NextRun:    j.runAt,
			Interval:   j.interval,
			CronExpr:   j.cronExpr,
			Created:    j.created,
			Fires:      j.fires,
			LastTaskID: j.lastTask,
		})
	}

	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].NextRun.Equal(jobs[k].NextRun) {
			return jobs[i].ID < jobs[k].ID
		}
		return jobs[i].NextRun.Before(jobs[k].NextRun)
	})
	return jobs
}

// Start launches the tick loop. Cancelling ctx stops the scheduler.
// A scheduler cannot be restarted after Stop.
func (s *scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running, call Stop() first")
	}
	if s.started {
		return fmt.Errorf("scheduler: cannot restart: %w", tferrors.ErrClosed)
	}

	s.started = true
	s.running = true
	go s.run()
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.done:
		}
	}()

	s.logger.Info("scheduler started", zap.Duration("tick_interval", s.tickInterval))
	return nil
}

// Stop halts the tick loop. The returned channel closes once the loop has
// exited. Submitted tasks keep running in the engine.
func (s *scheduler) Stop() <-chan struct{} {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.done)
	} else if !s.started {
		s.started = true
		close(s.done)
		close(s.exited)
	}
	s.mu.Unlock()
	return s.exited
}

func (s *scheduler) run() {
	defer close(s.exited)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		s.fireDue()

		select {
		case <-s.done:
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

type firing struct {
	job  *scheduledJob
	exec task.Executable
	opts []engine.SubmitOption
}

// fireDue submits every job whose run time has passed and reschedules
// repeating jobs.
func (s *scheduler) fireDue() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while firing jobs", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	now := s.clock()

	s.mu.Lock()
	if len(s.jobs) == 0 {
		s.mu.Unlock()
		return
	}

	var due []firing
	for id, j := range s.jobs {
		if now.Before(j.runAt) {
			continue
		}
		due = append(due, firing{job: j, exec: j.exec, opts: j.opts})

		switch {
		case j.interval > 0:
			j.runAt = now.Add(j.interval)
		case j.schedule != nil:
			j.runAt = j.schedule.Next(now.In(s.location))
			if j.runAt.IsZero() {
				delete(s.jobs, id)
				s.logger.Info("cron job has no further runs, removing",
					zap.String("job_id", id))
			}
		default:
			delete(s.jobs, id)
		}
	}
	s.updateGauge()
	s.mu.Unlock()

	for _, f := range due {
		s.submit(f)
	}
}

func (s *scheduler) submit(f firing) {
	opts := make([]engine.SubmitOption, 0, len(f.opts)+1)
	opts = append(opts, f.opts...)
	opts = append(opts, withScheduleLabel(f.job.id))

	taskID, err := s.engine.Submit(f.exec, opts...)
	if err != nil {
		if s.registry != nil {
			s.registry.ScheduleMisses.WithLabelValues(s.name).Inc()
		}
		s.logger.Warn("engine rejected scheduled task",
			zap.String("job_id", f.job.id),
			zap.Error(err))
		return
	}

	if s.registry != nil {
		s.registry.ScheduleFires.WithLabelValues(s.name).Inc()
	}

	s.mu.Lock()
	f.job.fires++
	f.job.lastTask = taskID
	s.mu.Unlock()

	s.logger.Debug("job fired",
		zap.String("job_id", f.job.id),
		zap.String("task_id", taskID))
}

func withScheduleLabel(id string) engine.SubmitOption {
	return func(spec *engine.Spec) {
		labels := make(map[string]string, len(spec.Labels)+1)
		for k, v := range spec.Labels {
			labels[k] = v
		}
		labels[LabelScheduleID] = id
		spec.Labels = labels
	}
}

// updateGauge must be called with s.mu held.
func (s *scheduler) updateGauge() {
	if s.registry != nil {
		s.registry.ScheduledJobs.WithLabelValues(s.name).Set(float64(len(s.jobs)))
	}
}
