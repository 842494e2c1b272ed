/*
Package scheduler submits tasks into an engine on a timetable.

A Scheduler owns no workers. Each time a job comes due it calls Submit on the
configured engine, so every firing becomes an independent task with its own
id, attempts, retries and observer events. Tasks already submitted are not
affected by cancelling the job that produced them.

Basic Usage:

	eng, _ := engine.New(engine.Config{MaxWorkers: 4})
	eng.Start(ctx)

	sched, _ := scheduler.New(scheduler.Config{Engine: eng})
	sched.Start(ctx)
	defer func() { <-sched.Stop() }()

	report := task.Func(func(ctx context.Context) (any, error) {
		return buildReport(ctx)
	})

	// Run once, five minutes from now
	sched.ScheduleAfter("report", report, 5*time.Minute)

	// Run now and then every 30 seconds
	sched.ScheduleRepeating("heartbeat", ping, 30*time.Second)

	// Cron expressions, with engine options applied to every firing
	sched.ScheduleCron("rollup", "0 9 * * MON-FRI", rollup,
		engine.WithPriority(10),
		engine.WithMaxAttempts(5))

Cron Expressions:

Five-field expressions ("minute hour day month weekday") are accepted, as is
an optional leading seconds field and the descriptors "@yearly", "@monthly",
"@weekly", "@daily", "@hourly" and "@every <duration>". Expressions are
evaluated in Config.Location. NextRuns previews a schedule without
registering it.

Labels:

Every submitted task carries the label LabelScheduleID naming the job that
fired it, merged with any labels passed through engine.WithLabels.

Error Handling:

Firings the engine rejects, for example after it has been stopped, are
logged and counted in the scheduler submit_errors_total metric. The job
itself stays registered and fires again at its next run time.

Lifecycle:

Start launches a ticker that checks for due jobs every TickInterval
(default 50ms). Cancelling the context passed to Start stops the scheduler.
Stop returns a channel that closes once the tick loop has exited; a stopped
scheduler cannot be restarted.
*/
package scheduler
