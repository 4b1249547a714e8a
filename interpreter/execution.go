package interpreter

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// ExecutionStatus is the lifecycle state of an Execution.
type ExecutionStatus int

const (
	StatusExecuting ExecutionStatus = iota
	StatusFinishedWithSuccess
	StatusFinishedWithFailure
)

func (s ExecutionStatus) String() string {
	switch s {
	case StatusExecuting:
		return "Executing"
	case StatusFinishedWithSuccess:
		return "FinishedWithSuccess"
	case StatusFinishedWithFailure:
		return "FinishedWithFailure"
	default:
		return "Unknown"
	}
}

// Host bundles the two capabilities an embedding application must supply:
// running a Task state's side effect and performing a Wait state's delay.
type Host interface {
	TaskExecutor
	Sleeper
}

// StateStepOutput is what one call to Execution.Next returns: the state
// that just ran, the execution's status after running it, and its output
// value (or failure).
type StateStepOutput struct {
	StateName string
	Status    ExecutionStatus
	Output    Value
	Error     *ExecutionError
}

// Execution pulls a state machine forward one state at a time. It holds no
// goroutine or timer of its own between calls to Next: the caller drives
// it, which is what lets a host single-step, pause, or persist between
// states.
type Execution struct {
	def       *Definition
	nextState string
	host      Host
	value     Value
	status    ExecutionStatus
	failure   *ExecutionError
	execCtx   Context
	rng       *rand.Rand
}

// NewExecution starts a new Execution of def with the given input, context
// object, and host. Call Next repeatedly until it returns ok == false.
func NewExecution(def *Definition, input Value, execCtx Context, host Host) *Execution {
	if execCtx == nil {
		execCtx = EmptyContext{}
	}
	return &Execution{
		def:       def,
		nextState: def.StartAt,
		host:      host,
		value:     input,
		status:    StatusExecuting,
		execCtx:   execCtx,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Status reports the Execution's current lifecycle status.
func (e *Execution) Status() ExecutionStatus { return e.status }

// Failure reports the terminal error, if the Execution finished with
// failure.
func (e *Execution) Failure() *ExecutionError { return e.failure }

// Next runs the next pending state and returns its outcome. ok is false
// once the Execution has reached a terminal status; calling Next again
// after that returns (nil, false).
func (e *Execution) Next(ctx context.Context) (*StateStepOutput, bool) {
	if e.nextState == "" {
		return nil, false
	}
	name := e.nextState
	state := e.def.States[name]

	output, execErr := e.step(ctx, state)
	if execErr != nil {
		e.status = StatusFinishedWithFailure
		e.failure = execErr
		e.nextState = ""
		return &StateStepOutput{StateName: name, Status: e.status, Error: execErr}, false
	}

	e.value = output
	if e.nextState == "" && e.status != StatusFinishedWithFailure {
		e.status = StatusFinishedWithSuccess
	}
	return &StateStepOutput{StateName: name, Status: e.status, Output: output}, e.status == StatusExecuting
}

// step executes one state end to end: input transforms, the state's own
// semantics (with Retry/Catch applied where legal), output transforms, and
// updates e.nextState. It returns the new e.value, or a terminal
// ExecutionError if the failure escaped every Catcher.
func (e *Execution) step(ctx context.Context, state *State) (Value, *ExecutionError) {
	inputAfterPath, err := e.resolvePath(state.compiled.inputPath, e.value)
	if err != nil {
		return nil, NewExecutionError(ErrorParameterPathFailure, err.Error())
	}

	if state.Type == StateTypeChoice {
		return e.stepChoice(state, inputAfterPath)
	}
	if state.Type == StateTypeSucceed {
		out, err := e.resolvePath(state.compiled.outputPath, inputAfterPath)
		if err != nil {
			return nil, NewExecutionError(ErrorResultPathMatchFailure, err.Error())
		}
		e.nextState = ""
		return out, nil
	}
	if state.Type == StateTypeFail {
		return nil, e.stepFail(state, inputAfterPath)
	}

	effectiveInput := inputAfterPath
	if state.compiled.parameters != nil {
		v, err := state.compiled.parameters.evaluate(ExecutionInput{Value: inputAfterPath, Context: e.execCtx})
		if err != nil {
			name := ErrorParameterPathFailure
			var ife *IntrinsicFunctionExecutionError
			if errors.As(err, &ife) {
				name = ErrorIntrinsicFailure
			}
			return nil, NewExecutionError(name, err.Error())
		}
		effectiveInput = v
	}

	raw, execErr := e.runWithRetry(ctx, state, effectiveInput)
	if execErr != nil {
		if next, out, ok := e.tryCatch(state, inputAfterPath, execErr); ok {
			return e.finishSuccessfulStep(state, out, next)
		}
		return nil, execErr.normalizeTaskFailure()
	}

	selected := raw
	if state.compiled.resultSelector != nil {
		v, err := state.compiled.resultSelector.evaluate(ExecutionInput{Value: raw, Context: e.execCtx})
		if err != nil {
			execErr := NewExecutionError(ErrorIntrinsicFailure, err.Error())
			if next, out, ok := e.tryCatch(state, inputAfterPath, execErr); ok {
				return e.finishSuccessfulStep(state, out, next)
			}
			return nil, execErr
		}
		selected = v
	}

	combined, err := applyResultPath(state.ResultPath, inputAfterPath, selected)
	if err != nil {
		execErr := NewExecutionError(ErrorResultPathMatchFailure, err.Error())
		if next, out, ok := e.tryCatch(state, inputAfterPath, execErr); ok {
			return e.finishSuccessfulStep(state, out, next)
		}
		return nil, execErr
	}

	return e.finishSuccessfulStep(state, combined, state.Next)
}

// finishSuccessfulStep applies OutputPath and records the state's
// successor (nextOverride, used when a Catcher redirected flow).
func (e *Execution) finishSuccessfulStep(state *State, combined Value, nextOverride string) (Value, *ExecutionError) {
	out, err := e.resolvePath(state.compiled.outputPath, combined)
	if err != nil {
		return nil, NewExecutionError(ErrorResultPathMatchFailure, err.Error())
	}
	if nextOverride != "" {
		e.nextState = nextOverride
	} else if state.End {
		e.nextState = ""
	} else {
		e.nextState = state.Next
	}
	return out, nil
}

func (e *Execution) resolvePath(dv *DynamicValue, in Value) (Value, error) {
	if dv == nil {
		return in, nil
	}
	v, present, err := dv.Evaluate(ExecutionInput{Value: in, Context: e.execCtx})
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, fmt.Errorf("path %q matched nothing", dv)
	}
	return v, nil
}

// tryCatch looks for a Catcher matching execErr and, if found, merges the
// error info into baseInput at the Catcher's ResultPath and returns the
// state to resume at (catcher.Next) alongside the merged value. A Catcher
// without a ResultPath passes baseInput through unchanged.
func (e *Execution) tryCatch(state *State, baseInput Value, execErr *ExecutionError) (next string, out Value, ok bool) {
	catcher := findCatcher(state.Catch, execErr.Error)
	if catcher == nil {
		return "", nil, false
	}
	if catcher.ResultPath == "" {
		return catcher.Next, baseInput, true
	}
	cause := ""
	if execErr.Cause != nil {
		cause = *execErr.Cause
	}
	errInfo := map[string]any{"Error": execErr.Error.String(), "Cause": cause}
	combined, err := applyResultPath(catcher.ResultPath, baseInput, errInfo)
	if err != nil {
		return "", nil, false
	}
	return catcher.Next, combined, true
}

// runWithRetry executes the state's core semantics, applying Retry on
// failure until a matching Retrier is exhausted or none match.
func (e *Execution) runWithRetry(ctx context.Context, state *State, input Value) (Value, *ExecutionError) {
	for {
		raw, execErr := e.runCore(ctx, state, input)
		if execErr == nil {
			return raw, nil
		}
		retrier := findRetrier(state.Retry, execErr.Error)
		if retrier == nil {
			return nil, execErr
		}
		delaySeconds, ok := retrier.NextDelay(e.rng)
		if !ok {
			return nil, execErr
		}
		if err := e.host.Sleep(ctx, time.Duration(delaySeconds*float64(time.Second))); err != nil {
			return nil, NewExecutionError(ErrorTimeout, err.Error())
		}
	}
}

// runCore executes a Task, Pass, Wait, Parallel, or Map state's own
// semantics and returns its raw result (pre ResultSelector/ResultPath).
func (e *Execution) runCore(ctx context.Context, state *State, input Value) (Value, *ExecutionError) {
	switch state.Type {
	case StateTypeTask:
		return e.runTask(ctx, state, input)
	case StateTypePass:
		return input, nil
	case StateTypeWait:
		return input, e.runWait(ctx, state, input)
	case StateTypeParallel:
		return e.runParallel(ctx, state, input)
	case StateTypeMap:
		return e.runMap(ctx, state, input)
	default:
		return nil, NewExecutionError(CustomError(fmt.Sprintf("interpreter: unexpected state type %s in runCore", state.Type)), "")
	}
}

func (e *Execution) runTask(ctx context.Context, state *State, input Value) (Value, *ExecutionError) {
	timeout := time.Duration(state.TimeoutSecondsField) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := e.host.Execute(taskCtx, state.Resource, input)
	if err != nil {
		if taskCtx.Err() == context.DeadlineExceeded {
			return nil, NewExecutionError(ErrorTimeout, err.Error())
		}
		return nil, AsExecutionError(err)
	}
	return result, nil
}

func (e *Execution) runWait(ctx context.Context, state *State, input Value) *ExecutionError {
	var d time.Duration
	switch {
	case state.Seconds != 0:
		d = time.Duration(state.Seconds) * time.Second
	case state.compiled.secondsPath != nil:
		v, _, err := state.compiled.secondsPath.Evaluate(ExecutionInput{Value: input, Context: e.execCtx})
		if err != nil {
			return NewExecutionError(ErrorParameterPathFailure, err.Error())
		}
		secs, ok := v.(float64)
		if !ok {
			return NewExecutionError(ErrorParameterPathFailure, "SecondsPath did not resolve to a number")
		}
		d = time.Duration(secs * float64(time.Second))
	case state.Timestamp != "":
		ts, err := ParseTimestamp(state.Timestamp)
		if err != nil {
			return NewExecutionError(ErrorParameterPathFailure, err.Error())
		}
		d = time.Duration(ts.SecondsUntilNow() * float64(time.Second))
	case state.compiled.timestampPath != nil:
		v, _, err := state.compiled.timestampPath.Evaluate(ExecutionInput{Value: input, Context: e.execCtx})
		if err != nil {
			return NewExecutionError(ErrorParameterPathFailure, err.Error())
		}
		s, ok := v.(string)
		if !ok {
			return NewExecutionError(ErrorParameterPathFailure, "TimestampPath did not resolve to a string")
		}
		ts, err := ParseTimestamp(s)
		if err != nil {
			return NewExecutionError(ErrorParameterPathFailure, err.Error())
		}
		d = time.Duration(ts.SecondsUntilNow() * float64(time.Second))
	}
	if d < 0 {
		d = 0
	}
	if err := e.host.Sleep(ctx, d); err != nil {
		return NewExecutionError(ErrorTimeout, err.Error())
	}
	return nil
}

func (e *Execution) stepChoice(state *State, input Value) (Value, *ExecutionError) {
	in := ExecutionInput{Value: input, Context: e.execCtx}
	for _, c := range state.compiled.choices {
		matched, err := evaluateChoiceRule(&c, in)
		if err != nil {
			return nil, NewExecutionError(ErrorParameterPathFailure, err.Error())
		}
		if matched {
			out, outErr := e.resolvePath(state.compiled.outputPath, input)
			if outErr != nil {
				return nil, NewExecutionError(ErrorResultPathMatchFailure, outErr.Error())
			}
			e.nextState = c.next
			return out, nil
		}
	}
	if state.Default != "" {
		out, outErr := e.resolvePath(state.compiled.outputPath, input)
		if outErr != nil {
			return nil, NewExecutionError(ErrorResultPathMatchFailure, outErr.Error())
		}
		e.nextState = state.Default
		return out, nil
	}
	return nil, NewExecutionError(ErrorNoChoiceMatched, "no Choice rule matched and no Default was set")
}

// malformedFailState reports that a Fail state's ErrorPath/CausePath field
// could not be resolved to a string, per
// original_source/src/asl/handlers/fail_handler.rs: any such failure folds
// into a single Custom("Malformed Fail State") error, the detail carried as
// its cause.
func malformedFailState(detail string) *ExecutionError {
	return NewExecutionError(CustomError("Malformed Fail State"), detail)
}

func (e *Execution) stepFail(state *State, input Value) *ExecutionError {
	in := ExecutionInput{Value: input, Context: e.execCtx}
	e.nextState = ""

	errName := state.Error
	switch {
	case state.compiled.errorPath != nil:
		v, present, err := state.compiled.errorPath.Evaluate(in)
		if err != nil {
			return malformedFailState(fmt.Sprintf("invalid ErrorPath: %s", err))
		}
		s, ok := v.(string)
		if !present || !ok {
			return malformedFailState("ErrorPath did not resolve to a string")
		}
		errName = s
	case errName == "":
		errName = "Reached Fail State"
	}

	cause := state.Cause
	if state.compiled.causePath != nil {
		v, present, err := state.compiled.causePath.Evaluate(in)
		if err != nil {
			return malformedFailState(fmt.Sprintf("invalid CausePath: %s", err))
		}
		s, ok := v.(string)
		if !present || !ok {
			return malformedFailState("CausePath did not resolve to a string")
		}
		cause = s
	}

	return NewExecutionError(CustomError(errName), cause)
}

// RunToCompletion drives an Execution to a terminal status, returning its
// final output (or failure). It is a convenience for callers that don't
// need to single-step, and is what Parallel/Map branches use internally.
func RunToCompletion(ctx context.Context, def *Definition, input Value, execCtx Context, host Host) (Value, *ExecutionError) {
	exec := NewExecution(def, input, execCtx, host)
	for {
		out, more := exec.Next(ctx)
		if !more {
			if out != nil && out.Error != nil {
				return nil, out.Error
			}
			if out != nil {
				return out.Output, nil
			}
			return exec.value, exec.failure
		}
	}
}
