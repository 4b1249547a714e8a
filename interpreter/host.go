package interpreter

import (
	"context"
	"time"
)

// TaskExecutor is implemented by the embedding application to perform the
// side effect named by a Task state's Resource field. The interpreter
// itself never dials a network or runs a subprocess: it delegates every
// Task to the host, the same separation of "interpreter core" from
// "plugin that does the I/O" the teacher draws between its engine and its
// plugins package.
type TaskExecutor interface {
	// Execute runs the task identified by resource with the given input
	// and returns its result value, or an error. An *ExecutionError is
	// used as is; any other error's text is matched against Retry/Catch
	// ErrorEquals and becomes States.TaskFailed only if nothing claims it
	// (see AsExecutionError).
	Execute(ctx context.Context, resource string, input Value) (Value, error)
}

// Sleeper is implemented by the embedding application to perform a Wait
// state's delay. The default, RealSleeper, sleeps in wall-clock time;
// tests substitute a Sleeper that returns immediately or records the
// requested duration.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealSleeper sleeps in real wall-clock time, honoring ctx cancellation.
type RealSleeper struct{}

// Sleep implements Sleeper.
func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AsExecutionError converts an arbitrary error raised by a TaskExecutor
// into an ExecutionError, preserving an existing one unchanged so a host
// can opt into precise error names (e.g. ErrorPermissions) instead of
// always being folded into States.TaskFailed.
//
// A plain error's own string becomes the raw Custom error name (marked
// rawTaskFailure) so Retry/Catch can match it by that literal text, per
// spec.md §6's host contract ("the interpreter uses that string as the
// error name for matching against Catcher error_equals"); it only falls
// back to States.TaskFailed once nothing claims it (normalizeTaskFailure).
func AsExecutionError(err error) *ExecutionError {
	if err == nil {
		return nil
	}
	if ee, ok := err.(*ExecutionError); ok {
		return ee
	}
	return &ExecutionError{Error: CustomError(err.Error()), Cause: strPtr(err.Error()), rawTaskFailure: true}
}

func strPtr(s string) *string { return &s }
