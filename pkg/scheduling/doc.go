/*
Package scheduling groups the components that decide when and where tasks run.

This package offers components for dispatching and executing tasks:

  - engine: Pending set, dispatch loop, retries, timeouts and shutdown
  - strategy: Pluggable selection of the next pending task
  - workerpool: Bounded slots limiting concurrent attempts
  - scheduler: Time-based submission with intervals and cron expressions

Engine:

The engine is the entry point. It owns a worker pool and a strategy:

	eng, err := engine.New(engine.Config{
		MaxWorkers: 4,
		Strategy:   strategy.Priority{},
	})
	eng.Start(ctx)
	defer eng.Stop(10 * time.Second)

	id, err := eng.Submit(task.Func(func(ctx context.Context) (any, error) {
		return process(ctx)
	}), engine.WithPriority(5), engine.WithMaxAttempts(3))

	state, err := eng.Status(id)

Strategies:

Strategies pick which pending task is dispatched next when a slot frees up:

	strategy.Priority{}          // highest priority first, ties by age
	strategy.FIFO{}              // submission order
	strategy.ShortestJobFirst{}  // cheap classes first, FIFO within a class

Worker Pool:

The worker pool can also bound concurrency on its own:

	pool, _ := workerpool.New(4)
	err := workerpool.Do(ctx, pool, func(ctx context.Context) error {
		return callBackend(ctx)
	})

Task Scheduler:

The scheduler submits into an engine on a timetable:

	sched, _ := scheduler.New(scheduler.Config{Engine: eng})
	sched.Start(ctx)
	defer func() { <-sched.Stop() }()

	sched.ScheduleAfter("warmup", warmup, time.Minute)
	sched.ScheduleRepeating("heartbeat", ping, 30*time.Second)
	sched.ScheduleCron("report", "0 9 * * MON-FRI", report)

All scheduling components are safe for concurrent use and integrate with
context for cancellation and timeout handling.
*/
package scheduling
