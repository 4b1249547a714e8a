package interpreter

import "fmt"

// ErrorName is the closed-plus-custom taxonomy of failure reasons used for
// matching in Retriers and Catchers.
type ErrorName struct {
	predefined string // one of the States.* constants below, or "" for Custom
	custom     string
}

// Predefined error names, per https://states-language.net/spec.html#appendix-a.
var (
	ErrorAll                           = ErrorName{predefined: "States.ALL"}
	ErrorHeartbeatTimeout              = ErrorName{predefined: "States.HeartbeatTimeout"}
	ErrorTimeout                       = ErrorName{predefined: "States.Timeout"}
	ErrorTaskFailed                    = ErrorName{predefined: "States.TaskFailed"}
	ErrorPermissions                   = ErrorName{predefined: "States.Permissions"}
	ErrorResultPathMatchFailure        = ErrorName{predefined: "States.ResultPathMatchFailure"}
	ErrorParameterPathFailure          = ErrorName{predefined: "States.ParameterPathFailure"}
	ErrorBranchFailed                  = ErrorName{predefined: "States.BranchFailed"}
	ErrorNoChoiceMatched               = ErrorName{predefined: "States.NoChoiceMatched"}
	ErrorIntrinsicFailure              = ErrorName{predefined: "States.IntrinsicFailure"}
	ErrorExceedToleratedFailureThresh  = ErrorName{predefined: "States.ExceedToleratedFailureThreshold"}
	ErrorItemReaderFailed              = ErrorName{predefined: "States.ItemReaderFailed"}
	ErrorResultWriterFailed            = ErrorName{predefined: "States.ResultWriterFailed"}
)

var predefinedErrorNames = map[string]ErrorName{
	ErrorAll.predefined:                          ErrorAll,
	ErrorHeartbeatTimeout.predefined:              ErrorHeartbeatTimeout,
	ErrorTimeout.predefined:                       ErrorTimeout,
	ErrorTaskFailed.predefined:                    ErrorTaskFailed,
	ErrorPermissions.predefined:                   ErrorPermissions,
	ErrorResultPathMatchFailure.predefined:        ErrorResultPathMatchFailure,
	ErrorParameterPathFailure.predefined:          ErrorParameterPathFailure,
	ErrorBranchFailed.predefined:                  ErrorBranchFailed,
	ErrorNoChoiceMatched.predefined:                ErrorNoChoiceMatched,
	ErrorIntrinsicFailure.predefined:              ErrorIntrinsicFailure,
	ErrorExceedToleratedFailureThresh.predefined:  ErrorExceedToleratedFailureThresh,
	ErrorItemReaderFailed.predefined:              ErrorItemReaderFailed,
	ErrorResultWriterFailed.predefined:            ErrorResultWriterFailed,
}

// CustomError builds an ErrorName for a user-defined (non-States.*) error
// string, e.g. a Fail state's literal Error field or a Task host's error text.
func CustomError(name string) ErrorName {
	if predefined, ok := predefinedErrorNames[name]; ok {
		return predefined
	}
	return ErrorName{custom: name}
}

// String returns the canonical string form used for Catcher/Retrier matching.
func (e ErrorName) String() string {
	if e.predefined != "" {
		return e.predefined
	}
	return e.custom
}

// IsCustom reports whether e is a user-defined error name rather than one of
// the predefined States.* names.
func (e ErrorName) IsCustom() bool {
	return e.predefined == ""
}

// Matches reports whether expected (an error_equals entry) matches name,
// per spec.md §4.3: States.ALL matches everything, Custom matches by exact
// string equality, any other predefined name matches by canonical string.
func Matches(expected ErrorName, name ErrorName) bool {
	if expected == ErrorAll {
		return true
	}
	return expected.String() == name.String()
}

// ExecutionError is the canonical error that crosses a state boundary: it is
// what an Execution's status carries once it reaches FinishedWithFailure.
type ExecutionError struct {
	Error ErrorName
	Cause *string

	// rawTaskFailure marks an error built from a TaskExecutor's plain Go
	// error (see AsExecutionError): its Error name is the error's own
	// string, kept raw so Retry/Catch can match it by that literal text.
	// Only once it has escaped every Retrier and Catcher unmatched does it
	// fall back to States.TaskFailed, per spec.md §4.5.
	rawTaskFailure bool
}

func (e *ExecutionError) String() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Error.String(), *e.Cause)
	}
	return e.Error.String()
}

// NewExecutionError builds an ExecutionError with an optional cause string.
// Pass "" to omit the cause.
func NewExecutionError(name ErrorName, cause string) *ExecutionError {
	ee := &ExecutionError{Error: name}
	if cause != "" {
		ee.Cause = &cause
	}
	return ee
}

// normalizeTaskFailure falls back an unmatched raw task error to
// States.TaskFailed, keeping its cause text. Non-raw errors (already a
// specific States.* name, or a Fail state's own Custom error) are returned
// unchanged: the fallback applies only to a TaskExecutor's plain error that
// no Retrier or Catcher claimed.
func (e *ExecutionError) normalizeTaskFailure() *ExecutionError {
	if e == nil || !e.rawTaskFailure {
		return e
	}
	return &ExecutionError{Error: ErrorTaskFailed, Cause: e.Cause}
}
