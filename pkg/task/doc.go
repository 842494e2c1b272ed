/*
Package task defines the unit of work scheduled by the taskflow engine.

A Task pairs an Executable with identity and retry configuration. Tasks are
inert records: only the engine mutates them, moving each one forward through

	Pending -> Running -> Completed | Failed | Cancelled
	                   -> Pending (retry)

Completed, Failed and Cancelled are terminal. Observers and callers never see
the mutable record; they receive Snapshot copies.

Executables report how they failed through the error they return:

	return nil, task.Recoverable(err) // transient, retried per backoff
	return nil, task.Fatal(err)       // permanent, never retried

Plain errors are treated as recoverable. Attempt deadlines surface as
KindTimeout, which is retried like any other recoverable failure.
*/
package task
