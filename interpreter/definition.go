package interpreter

import "encoding/json"

// StateType is the "Type" discriminator of a state object.
type StateType string

const (
	StateTypeTask     StateType = "Task"
	StateTypeParallel StateType = "Parallel"
	StateTypeMap      StateType = "Map"
	StateTypePass     StateType = "Pass"
	StateTypeWait     StateType = "Wait"
	StateTypeChoice   StateType = "Choice"
	StateTypeSucceed  StateType = "Succeed"
	StateTypeFail     StateType = "Fail"
)

// Definition is a parsed state machine: either the top-level document or
// the nested machine carried by a Parallel branch / Map ItemProcessor.
type Definition struct {
	Comment        string            `json:"Comment,omitempty"`
	StartAt        string            `json:"StartAt" validate:"required"`
	Version        string            `json:"Version,omitempty"`
	TimeoutSeconds int               `json:"TimeoutSeconds,omitempty" validate:"min=0"`
	States         map[string]*State `json:"States" validate:"required,min=1,dive"`
}

// State holds every field any of the eight state types may carry. A single
// flat struct (rather than eight distinct Go types behind an interface)
// keeps JSON decoding a plain json.Unmarshal and pushes the "which fields
// are legal for this Type" cross-check into the parser, matching
// encoding/json's lack of a native tagged-union decode.
type State struct {
	Type    StateType `json:"Type" validate:"required,oneof=Task Parallel Map Pass Wait Choice Succeed Fail"`
	Comment string    `json:"Comment,omitempty"`

	InputPath  string `json:"InputPath,omitempty" validate:"omitempty,jsonpath"`
	OutputPath string `json:"OutputPath,omitempty" validate:"omitempty,jsonpath"`

	Next string `json:"Next,omitempty"`
	End  bool   `json:"End,omitempty"`

	ResultPath     string          `json:"ResultPath,omitempty" validate:"omitempty,jsonpath"`
	Parameters     json.RawMessage `json:"Parameters,omitempty"`
	ResultSelector json.RawMessage `json:"ResultSelector,omitempty"`

	Retry []Retrier `json:"Retry,omitempty" validate:"dive"`
	Catch []Catcher `json:"Catch,omitempty" validate:"dive"`

	// Task
	Resource              string          `json:"Resource,omitempty"`
	TimeoutSecondsField   int             `json:"TimeoutSeconds,omitempty" validate:"min=0"`
	TimeoutSecondsPath    string          `json:"TimeoutSecondsPath,omitempty" validate:"omitempty,jsonpath"`
	HeartbeatSeconds      int             `json:"HeartbeatSeconds,omitempty" validate:"min=0"`
	HeartbeatSecondsPath  string          `json:"HeartbeatSecondsPath,omitempty" validate:"omitempty,jsonpath"`
	Credentials           json.RawMessage `json:"Credentials,omitempty"`

	// Wait
	Seconds       int    `json:"Seconds,omitempty" validate:"min=0"`
	SecondsPath   string `json:"SecondsPath,omitempty" validate:"omitempty,jsonpath"`
	Timestamp     string `json:"Timestamp,omitempty"`
	TimestampPath string `json:"TimestampPath,omitempty" validate:"omitempty,jsonpath"`

	// Choice
	Choices []ChoiceRule `json:"Choices,omitempty" validate:"dive"`
	Default string       `json:"Default,omitempty"`

	// Fail
	Error     string `json:"Error,omitempty"`
	ErrorPath string `json:"ErrorPath,omitempty" validate:"omitempty,jsonpath"`
	Cause     string `json:"Cause,omitempty"`
	CausePath string `json:"CausePath,omitempty" validate:"omitempty,jsonpath"`

	// Parallel. Branches is not part of states-language.net's literal JSON
	// grammar for Parallel (the spec nests a full sub-Definition per
	// branch); modeling it as a named field rather than requiring callers
	// to special-case array-of-Definition decoding is the one addition
	// this interpreter makes to the wire shape.
	Branches []Definition `json:"Branches,omitempty" validate:"dive"`

	// Map
	ItemsPath                  string             `json:"ItemsPath,omitempty" validate:"omitempty,jsonpath"`
	ItemProcessor              *Definition        `json:"ItemProcessor,omitempty"`
	Iterator                   *Definition        `json:"Iterator,omitempty"`
	ItemSelector               json.RawMessage    `json:"ItemSelector,omitempty"`
	MaxConcurrency             int                `json:"MaxConcurrency,omitempty" validate:"min=0"`
	ToleratedFailureCount      int                `json:"ToleratedFailureCount,omitempty" validate:"min=0"`
	ToleratedFailurePercentage float64            `json:"ToleratedFailurePercentage,omitempty" validate:"min=0,max=100"`
	ItemBatcher                *ItemBatcherConfig `json:"ItemBatcher,omitempty"`
	ResultWriter               json.RawMessage    `json:"ResultWriter,omitempty"`

	// compiled holds everything produced by compile() that isn't itself
	// JSON: parsed paths, payload templates, pre-classified error names.
	// Populated by Parse; nil on a State that was only ever decoded.
	compiled *compiledState
}

// ItemBatcherConfig configures a Map state's ItemBatcher field.
type ItemBatcherConfig struct {
	MaxItemsPerBatch      int             `json:"MaxItemsPerBatch,omitempty" validate:"min=0"`
	MaxInputBytesPerBatch int             `json:"MaxInputBytesPerBatch,omitempty" validate:"min=0"`
	BatchInput            json.RawMessage `json:"BatchInput,omitempty"`
}

// compiledState caches the parse-time work (path compilation, payload
// template compilation, Choice expression compilation) so evaluating a
// state doesn't re-parse its JSONPath/intrinsic strings on every visit.
type compiledState struct {
	inputPath      *DynamicValue
	outputPath     *DynamicValue
	resultPath     *DynamicValue
	parameters     *payloadTemplate
	resultSelector *payloadTemplate
	itemSelector   *payloadTemplate
	itemsPath      *DynamicValue

	errorPath *DynamicValue
	causePath *DynamicValue

	timeoutSecondsPath   *DynamicValue
	heartbeatSecondsPath *DynamicValue
	secondsPath          *DynamicValue
	timestampPath        *DynamicValue

	choices []compiledChoiceRule
}

// IsTerminal reports whether this state type never has a Next/End
// successor (Choice routes exclusively via its Choices/Default, Succeed
// and Fail end the execution outright).
func (s *State) IsTerminal() bool {
	switch s.Type {
	case StateTypeChoice, StateTypeSucceed, StateTypeFail:
		return true
	default:
		return false
	}
}
