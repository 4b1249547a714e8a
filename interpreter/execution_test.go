package interpreter

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeHost struct {
	resources map[string]func(Value) (Value, error)
	sleeps    []time.Duration
}

func newFakeHost() *fakeHost {
	return &fakeHost{resources: map[string]func(Value) (Value, error){}}
}

func (h *fakeHost) Execute(ctx context.Context, resource string, input Value) (Value, error) {
	fn, ok := h.resources[resource]
	if !ok {
		return nil, errors.New("unknown resource: " + resource)
	}
	return fn(input)
}

func (h *fakeHost) Sleep(ctx context.Context, d time.Duration) error {
	h.sleeps = append(h.sleeps, d)
	return nil
}

func mustParse(t *testing.T, raw string) *Definition {
	t.Helper()
	def, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return def
}

func TestHelloWorldTaskToEnd(t *testing.T) {
	def := mustParse(t, `{
		"StartAt": "Hello World",
		"States": {
			"Hello World": {"Type": "Task", "Resource": "echo", "End": true}
		}
	}`)
	host := newFakeHost()
	host.resources["echo"] = func(v Value) (Value, error) { return v, nil }

	out, execErr := RunToCompletion(context.Background(), def, "Hello world", nil, host)
	if execErr != nil {
		t.Fatalf("unexpected execution error: %v", execErr)
	}
	if out != "Hello world" {
		t.Errorf("expected passthrough output, got %v", out)
	}
}

func TestTaskToSucceed(t *testing.T) {
	def := mustParse(t, `{
		"StartAt": "DoWork",
		"States": {
			"DoWork": {"Type": "Task", "Resource": "work", "Next": "Done"},
			"Done": {"Type": "Succeed"}
		}
	}`)
	host := newFakeHost()
	host.resources["work"] = func(v Value) (Value, error) { return map[string]any{"ok": true}, nil }

	exec := NewExecution(def, nil, nil, host)
	var last *StateStepOutput
	for {
		out, more := exec.Next(context.Background())
		last = out
		if !more {
			break
		}
	}
	if exec.Status() != StatusFinishedWithSuccess {
		t.Fatalf("expected success status, got %v", exec.Status())
	}
	if last.StateName != "Done" {
		t.Errorf("expected last state 'Done', got %q", last.StateName)
	}
}

func TestTaskToFailWithErrorAndCause(t *testing.T) {
	def := mustParse(t, `{
		"StartAt": "Oops",
		"States": {
			"Oops": {"Type": "Fail", "Error": "MyApp.Broken", "Cause": "something broke"}
		}
	}`)
	host := newFakeHost()
	out, execErr := RunToCompletion(context.Background(), def, nil, nil, host)
	if execErr == nil {
		t.Fatal("expected execution to fail")
	}
	if out != nil {
		t.Errorf("expected nil output on failure, got %v", out)
	}
	if execErr.Error.String() != "MyApp.Broken" {
		t.Errorf("expected error name MyApp.Broken, got %s", execErr.Error.String())
	}
	if execErr.Cause == nil || *execErr.Cause != "something broke" {
		t.Errorf("expected cause 'something broke', got %v", execErr.Cause)
	}
}

// TestFailStateDefaultsToReachedFailState covers spec.md §7's default for a
// Fail state with neither Error nor ErrorPath set.
func TestFailStateDefaultsToReachedFailState(t *testing.T) {
	def := mustParse(t, `{
		"StartAt": "Oops",
		"States": {
			"Oops": {"Type": "Fail"}
		}
	}`)
	host := newFakeHost()
	_, execErr := RunToCompletion(context.Background(), def, nil, nil, host)
	if execErr == nil {
		t.Fatal("expected execution to fail")
	}
	if execErr.Error.String() != "Reached Fail State" {
		t.Errorf("expected default error name 'Reached Fail State', got %s", execErr.Error.String())
	}
}

// TestFailStateErrorPathNotStringIsMalformed covers spec.md §4.8: an
// ErrorPath that resolves to a non-string value must raise an error, not
// silently keep an empty error name.
func TestFailStateErrorPathNotStringIsMalformed(t *testing.T) {
	def := mustParse(t, `{
		"StartAt": "Oops",
		"States": {
			"Oops": {"Type": "Fail", "ErrorPath": "$.code"}
		}
	}`)
	host := newFakeHost()
	_, execErr := RunToCompletion(context.Background(), def, map[string]any{"code": 42.0}, nil, host)
	if execErr == nil {
		t.Fatal("expected execution to fail")
	}
	if execErr.Error.String() != "Malformed Fail State" {
		t.Errorf("expected Malformed Fail State, got %s", execErr.Error.String())
	}
}

func TestChoiceDispatchWithDefault(t *testing.T) {
	def := mustParse(t, `{
		"StartAt": "Check",
		"States": {
			"Check": {
				"Type": "Choice",
				"Choices": [
					{"Variable": "$.value", "NumericGreaterThan": 100, "Next": "Big"}
				],
				"Default": "Small"
			},
			"Big": {"Type": "Succeed"},
			"Small": {"Type": "Succeed"}
		}
	}`)
	host := newFakeHost()
	exec := NewExecution(def, map[string]any{"value": 5.0}, nil, host)
	var last *StateStepOutput
	for {
		out, more := exec.Next(context.Background())
		last = out
		if !more {
			break
		}
	}
	if last.StateName != "Small" {
		t.Errorf("expected Default route to 'Small', got %q", last.StateName)
	}
}

func TestChoiceNoMatchNoDefaultFails(t *testing.T) {
	def := mustParse(t, `{
		"StartAt": "Check",
		"States": {
			"Check": {
				"Type": "Choice",
				"Choices": [
					{"Variable": "$.value", "NumericGreaterThan": 100, "Next": "Big"}
				]
			},
			"Big": {"Type": "Succeed"}
		}
	}`)
	host := newFakeHost()
	_, execErr := RunToCompletion(context.Background(), def, map[string]any{"value": 5.0}, nil, host)
	if execErr == nil {
		t.Fatal("expected failure when no choice matches and no default is set")
	}
	if execErr.Error != ErrorNoChoiceMatched {
		t.Errorf("expected States.NoChoiceMatched, got %s", execErr.Error.String())
	}
}

func TestTaskRetryThenSuccess(t *testing.T) {
	def := mustParse(t, `{
		"StartAt": "Flaky",
		"States": {
			"Flaky": {
				"Type": "Task",
				"Resource": "flaky",
				"End": true,
				"Retry": [{"ErrorEquals": ["States.ALL"], "IntervalSeconds": 1, "MaxAttempts": 3, "BackoffRate": 2}]
			}
		}
	}`)
	host := newFakeHost()
	attempts := 0
	host.resources["flaky"] = func(v Value) (Value, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient failure")
		}
		return "recovered", nil
	}

	out, execErr := RunToCompletion(context.Background(), def, nil, nil, host)
	if execErr != nil {
		t.Fatalf("unexpected execution error: %v", execErr)
	}
	if out != "recovered" {
		t.Errorf("expected eventual success, got %v", out)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if len(host.sleeps) != 2 {
		t.Errorf("expected 2 retry delays, got %d", len(host.sleeps))
	}
}

func TestTaskCatchRoute(t *testing.T) {
	def := mustParse(t, `{
		"StartAt": "Risky",
		"States": {
			"Risky": {
				"Type": "Task",
				"Resource": "risky",
				"End": true,
				"Catch": [{"ErrorEquals": ["States.ALL"], "Next": "Recover", "ResultPath": "$.error"}]
			},
			"Recover": {"Type": "Pass", "End": true}
		}
	}`)
	host := newFakeHost()
	host.resources["risky"] = func(v Value) (Value, error) { return nil, errors.New("boom") }

	out, execErr := RunToCompletion(context.Background(), def, map[string]any{"a": 1.0}, nil, host)
	if execErr != nil {
		t.Fatalf("unexpected execution error: %v", execErr)
	}
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("expected map output, got %T", out)
	}
	if m["a"] != 1.0 {
		t.Errorf("expected original input field preserved, got %+v", m)
	}
	errInfo, ok := m["error"].(map[string]any)
	if !ok || errInfo["Error"] != "boom" {
		t.Errorf("expected the host's raw error text at $.error, got %+v", m)
	}
}

// TestTaskRetryMatchesRawErrorString covers spec.md §8 scenario 5: a host
// returning a plain error ("Svc") must have that literal string, not
// States.TaskFailed, matched against a Retrier's ErrorEquals.
func TestTaskRetryMatchesRawErrorString(t *testing.T) {
	def := mustParse(t, `{
		"StartAt": "Flaky",
		"States": {
			"Flaky": {
				"Type": "Task",
				"Resource": "flaky",
				"End": true,
				"Retry": [{"ErrorEquals": ["Svc"], "IntervalSeconds": 1, "MaxAttempts": 3, "BackoffRate": 2}]
			}
		}
	}`)
	host := newFakeHost()
	attempts := 0
	host.resources["flaky"] = func(v Value) (Value, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("Svc")
		}
		return "recovered", nil
	}

	out, execErr := RunToCompletion(context.Background(), def, nil, nil, host)
	if execErr != nil {
		t.Fatalf("unexpected execution error: %v", execErr)
	}
	if out != "recovered" || attempts != 3 {
		t.Fatalf("expected the raw error string 'Svc' to drive retry matching, got out=%v attempts=%d", out, attempts)
	}
}

// TestTaskCatchMatchesRawErrorString covers spec.md §8 scenario 6: a host
// returning a plain error ("X") must have that literal string matched
// against a Catcher's ErrorEquals, not the States.TaskFailed fallback.
func TestTaskCatchMatchesRawErrorString(t *testing.T) {
	def := mustParse(t, `{
		"StartAt": "Risky",
		"States": {
			"Risky": {
				"Type": "Task",
				"Resource": "risky",
				"End": true,
				"Catch": [{"ErrorEquals": ["X"], "Next": "Recover"}]
			},
			"Recover": {"Type": "Pass", "End": true}
		}
	}`)
	host := newFakeHost()
	host.resources["risky"] = func(v Value) (Value, error) { return nil, errors.New("X") }

	out, execErr := RunToCompletion(context.Background(), def, "input", nil, host)
	if execErr != nil {
		t.Fatalf("unexpected execution error: %v", execErr)
	}
	if out != "input" {
		t.Errorf("expected the Catcher's default ResultPath to keep the original input, got %v", out)
	}
}

// TestTaskUnmatchedErrorFallsBackToTaskFailed confirms a raw host error that
// no Retrier or Catcher claims is only then normalized to States.TaskFailed.
func TestTaskUnmatchedErrorFallsBackToTaskFailed(t *testing.T) {
	def := mustParse(t, `{
		"StartAt": "Risky",
		"States": {
			"Risky": {
				"Type": "Task",
				"Resource": "risky",
				"End": true,
				"Catch": [{"ErrorEquals": ["SomethingElse"], "Next": "Recover"}]
			},
			"Recover": {"Type": "Pass", "End": true}
		}
	}`)
	host := newFakeHost()
	host.resources["risky"] = func(v Value) (Value, error) { return nil, errors.New("boom") }

	_, execErr := RunToCompletion(context.Background(), def, nil, nil, host)
	if execErr == nil {
		t.Fatal("expected execution to fail")
	}
	if execErr.Error != ErrorTaskFailed {
		t.Errorf("expected an unmatched raw error to fall back to States.TaskFailed, got %s", execErr.Error.String())
	}
}

func TestParallelBranchesRunConcurrently(t *testing.T) {
	def := mustParse(t, `{
		"StartAt": "Fork",
		"States": {
			"Fork": {
				"Type": "Parallel",
				"End": true,
				"Branches": [
					{"StartAt": "A", "States": {"A": {"Type": "Pass", "End": true}}},
					{"StartAt": "B", "States": {"B": {"Type": "Pass", "End": true}}}
				]
			}
		}
	}`)
	host := newFakeHost()
	out, execErr := RunToCompletion(context.Background(), def, "x", nil, host)
	if execErr != nil {
		t.Fatalf("unexpected execution error: %v", execErr)
	}
	arr, ok := out.([]any)
	if !ok || len(arr) != 2 {
		t.Fatalf("expected a 2-element array, got %#v", out)
	}
	if arr[0] != "x" || arr[1] != "x" {
		t.Errorf("expected each branch to echo its input, got %#v", arr)
	}
}

func TestMapProcessesEachItem(t *testing.T) {
	def := mustParse(t, `{
		"StartAt": "ForEach",
		"States": {
			"ForEach": {
				"Type": "Map",
				"End": true,
				"ItemsPath": "$.items",
				"ItemProcessor": {
					"StartAt": "Double",
					"States": {"Double": {"Type": "Task", "Resource": "double", "End": true}}
				}
			}
		}
	}`)
	host := newFakeHost()
	host.resources["double"] = func(v Value) (Value, error) { return v.(float64) * 2, nil }

	out, execErr := RunToCompletion(context.Background(), def, map[string]any{"items": []any{1.0, 2.0, 3.0}}, nil, host)
	if execErr != nil {
		t.Fatalf("unexpected execution error: %v", execErr)
	}
	arr := out.([]any)
	if len(arr) != 3 || arr[0] != 2.0 || arr[1] != 4.0 || arr[2] != 6.0 {
		t.Errorf("expected doubled items, got %#v", arr)
	}
}

func TestMapExceedsToleratedFailureThreshold(t *testing.T) {
	def := mustParse(t, `{
		"StartAt": "ForEach",
		"States": {
			"ForEach": {
				"Type": "Map",
				"End": true,
				"ItemsPath": "$.items",
				"ToleratedFailureCount": 1,
				"ItemProcessor": {
					"StartAt": "MaybeFail",
					"States": {"MaybeFail": {"Type": "Task", "Resource": "maybeFail", "End": true}}
				}
			}
		}
	}`)
	host := newFakeHost()
	host.resources["maybeFail"] = func(v Value) (Value, error) {
		if v.(float64) < 0 {
			return nil, errors.New("negative")
		}
		return v, nil
	}

	_, execErr := RunToCompletion(context.Background(), def, map[string]any{"items": []any{1.0, -1.0, -2.0}}, nil, host)
	if execErr == nil {
		t.Fatal("expected the Map state to fail once tolerated failures are exceeded")
	}
	if execErr.Error != ErrorExceedToleratedFailureThresh {
		t.Errorf("expected States.ExceedToleratedFailureThreshold, got %s", execErr.Error.String())
	}
}

func TestWaitUsesHostSleeper(t *testing.T) {
	def := mustParse(t, `{
		"StartAt": "Pause",
		"States": {
			"Pause": {"Type": "Wait", "Seconds": 5, "End": true}
		}
	}`)
	host := newFakeHost()
	_, execErr := RunToCompletion(context.Background(), def, "x", nil, host)
	if execErr != nil {
		t.Fatalf("unexpected error: %v", execErr)
	}
	if len(host.sleeps) != 1 || host.sleeps[0] != 5*time.Second {
		t.Errorf("expected a single 5s sleep, got %v", host.sleeps)
	}
}
