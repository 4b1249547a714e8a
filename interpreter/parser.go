package interpreter

import (
	"encoding/json"
	"fmt"
)

// ParseErrorKind classifies why Parse failed.
type ParseErrorKind int

const (
	// ParseErrMalformedInput means the input was not valid JSON, or did
	// not decode into the Definition shape (missing required fields,
	// wrong field types).
	ParseErrMalformedInput ParseErrorKind = iota
	// ParseErrStartStateNotDefined means StartAt names a state missing
	// from States.
	ParseErrStartStateNotDefined
	// ParseErrDanglingTransition means a Next field (on a state, a
	// Catcher, or a Choice rule) names a state missing from States.
	ParseErrDanglingTransition
	// ParseErrInvalidStateShape means a state carries fields illegal for
	// its Type, or is missing fields required for its Type.
	ParseErrInvalidStateShape
)

// ParseError is returned by Parse.
type ParseError struct {
	Kind ParseErrorKind
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes raw JSON into a fully compiled, cross-referenced
// Definition: every JSONPath, payload template, and Choice expression is
// parsed, every Next/StartAt/Catcher target is confirmed to name a real
// state, and every state's field combination is checked against what its
// Type permits.
func Parse(raw []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, &ParseError{Kind: ParseErrMalformedInput, Msg: "malformed state machine definition", Err: err}
	}
	if err := prepareStruct(&def, "Definition"); err != nil {
		return nil, &ParseError{Kind: ParseErrMalformedInput, Msg: "state machine definition failed validation", Err: err}
	}
	if err := compileDefinition(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// compileDefinition validates and compiles one Definition level (the
// top-level document, a Parallel branch, or a Map ItemProcessor), applying
// defaults, cross-referencing Next/StartAt targets, and compiling every
// state's DynamicValue/payload-template/Choice fields.
func compileDefinition(def *Definition) error {
	if _, ok := def.States[def.StartAt]; !ok {
		return &ParseError{Kind: ParseErrStartStateNotDefined, Msg: fmt.Sprintf("StartAt %q is not defined in States", def.StartAt)}
	}
	for name, s := range def.States {
		if err := prepareStruct(s, string(s.Type)); err != nil {
			return &ParseError{Kind: ParseErrInvalidStateShape, Msg: fmt.Sprintf("state %q failed validation", name), Err: err}
		}
		if err := checkStateShape(s); err != nil {
			return &ParseError{Kind: ParseErrInvalidStateShape, Msg: fmt.Sprintf("state %q: %s", name, err)}
		}
		if err := compileState(s); err != nil {
			return &ParseError{Kind: ParseErrMalformedInput, Msg: fmt.Sprintf("state %q", name), Err: err}
		}
	}
	for name, s := range def.States {
		if err := checkTransitions(def, s); err != nil {
			return &ParseError{Kind: ParseErrDanglingTransition, Msg: fmt.Sprintf("state %q", name), Err: err}
		}
	}
	return nil
}

// checkStateShape enforces the common-fields table from
// states-language.net §common-state-fields: which of Next/End,
// ResultPath, Parameters, ResultSelector, Retry/Catch are legal per Type,
// plus each Type's own required fields.
func checkStateShape(s *State) error {
	needsTransition := !s.IsTerminal()
	if needsTransition {
		if s.Next == "" && !s.End {
			return fmt.Errorf("must set exactly one of Next or End")
		}
		if s.Next != "" && s.End {
			return fmt.Errorf("must not set both Next and End")
		}
	} else if s.Next != "" || s.End {
		return fmt.Errorf("%s states must not set Next or End", s.Type)
	}

	if err := checkFieldAllowance(s); err != nil {
		return err
	}

	switch s.Type {
	case StateTypeTask:
		if s.Resource == "" {
			return fmt.Errorf("Task state requires Resource")
		}
		if s.TimeoutSecondsField != 0 && s.TimeoutSecondsPath != "" {
			return fmt.Errorf("Task state must not set both TimeoutSeconds and TimeoutSecondsPath")
		}
		if s.HeartbeatSeconds != 0 && s.HeartbeatSecondsPath != "" {
			return fmt.Errorf("Task state must not set both HeartbeatSeconds and HeartbeatSecondsPath")
		}
		if s.HeartbeatSeconds != 0 && s.TimeoutSecondsField != 0 && s.HeartbeatSeconds >= s.TimeoutSecondsField {
			return fmt.Errorf("Task state HeartbeatSeconds must be less than TimeoutSeconds")
		}
	case StateTypeWait:
		set := 0
		for _, v := range []bool{s.Seconds != 0, s.SecondsPath != "", s.Timestamp != "", s.TimestampPath != ""} {
			if v {
				set++
			}
		}
		if set != 1 {
			return fmt.Errorf("Wait state requires exactly one of Seconds, SecondsPath, Timestamp, TimestampPath")
		}
	case StateTypeChoice:
		if len(s.Choices) == 0 {
			return fmt.Errorf("Choice state requires a non-empty Choices array")
		}
	case StateTypeFail:
		if s.Error != "" && s.ErrorPath != "" {
			return fmt.Errorf("Fail state must not set both Error and ErrorPath")
		}
		if s.Cause != "" && s.CausePath != "" {
			return fmt.Errorf("Fail state must not set both Cause and CausePath")
		}
	case StateTypeParallel:
		if len(s.Branches) == 0 {
			return fmt.Errorf("Parallel state requires a non-empty Branches array")
		}
	case StateTypeMap:
		if s.ItemProcessor == nil && s.Iterator == nil {
			return fmt.Errorf("Map state requires ItemProcessor (or its Iterator alias)")
		}
	}
	return nil
}

// allowResultPath etc. encode the common-fields table from
// states-language.net §common-state-fields. Fail supports none of
// InputPath/OutputPath/ResultPath/Parameters/ResultSelector/Retry/Catch;
// Choice, Succeed and Wait support a strict subset.
var (
	allowInputOutputPath = map[StateType]bool{
		StateTypeTask: true, StateTypeParallel: true, StateTypeMap: true,
		StateTypePass: true, StateTypeWait: true, StateTypeChoice: true, StateTypeSucceed: true,
	}
	allowResultPath = map[StateType]bool{
		StateTypeTask: true, StateTypeParallel: true, StateTypeMap: true, StateTypePass: true,
	}
	allowParameters     = allowResultPath
	allowResultSelector = map[StateType]bool{StateTypeTask: true, StateTypeParallel: true, StateTypeMap: true}
	allowRetryCatch     = map[StateType]bool{StateTypeTask: true, StateTypeParallel: true, StateTypeMap: true}
)

func checkFieldAllowance(s *State) error {
	if !allowInputOutputPath[s.Type] && (s.InputPath != "" || s.OutputPath != "") {
		return fmt.Errorf("%s states must not set InputPath or OutputPath", s.Type)
	}
	if !allowResultPath[s.Type] && s.ResultPath != "" {
		return fmt.Errorf("%s states must not set ResultPath", s.Type)
	}
	if !allowParameters[s.Type] && len(s.Parameters) > 0 {
		return fmt.Errorf("%s states must not set Parameters", s.Type)
	}
	if !allowResultSelector[s.Type] && len(s.ResultSelector) > 0 {
		return fmt.Errorf("%s states must not set ResultSelector", s.Type)
	}
	if !allowRetryCatch[s.Type] && (len(s.Retry) > 0 || len(s.Catch) > 0) {
		return fmt.Errorf("%s states must not set Retry or Catch", s.Type)
	}
	return nil
}

func checkTransitions(def *Definition, s *State) error {
	check := func(next string) error {
		if next == "" {
			return nil
		}
		if _, ok := def.States[next]; !ok {
			return fmt.Errorf("Next %q is not defined in States", next)
		}
		return nil
	}
	if err := check(s.Next); err != nil {
		return err
	}
	if s.Type == StateTypeChoice {
		if err := check(s.Default); err != nil {
			return err
		}
		for _, c := range s.Choices {
			if err := checkChoiceRuleTransitions(def, c); err != nil {
				return err
			}
		}
	}
	for _, c := range s.Catch {
		if err := check(c.Next); err != nil {
			return err
		}
	}
	return nil
}

func checkChoiceRuleTransitions(def *Definition, r ChoiceRule) error {
	if r.Next != "" {
		if _, ok := def.States[r.Next]; !ok {
			return fmt.Errorf("choice rule Next %q is not defined in States", r.Next)
		}
	}
	if r.Not != nil {
		return checkChoiceRuleTransitions(def, *r.Not)
	}
	for _, sub := range r.And {
		if err := checkChoiceRuleTransitions(def, sub); err != nil {
			return err
		}
	}
	for _, sub := range r.Or {
		if err := checkChoiceRuleTransitions(def, sub); err != nil {
			return err
		}
	}
	return nil
}

// compileState fills s.compiled from s's JSON-decoded fields: paths,
// payload templates, Choice expressions, and the Retrier/Catcher error
// name lookups. It also recurses into Parallel branches and a Map's
// ItemProcessor so the whole tree is compiled in one Parse call.
func compileState(s *State) error {
	c := &compiledState{}

	var err error
	if c.inputPath, err = optionalPath(s.InputPath); err != nil {
		return err
	}
	if c.outputPath, err = optionalPath(s.OutputPath); err != nil {
		return err
	}
	if c.resultPath, err = optionalPath(s.ResultPath); err != nil {
		return err
	}
	if c.parameters, err = compilePayloadTemplate(s.Parameters); err != nil {
		return err
	}
	if c.resultSelector, err = compilePayloadTemplate(s.ResultSelector); err != nil {
		return err
	}
	if c.itemSelector, err = compilePayloadTemplate(s.ItemSelector); err != nil {
		return err
	}
	if c.errorPath, err = optionalPath(s.ErrorPath); err != nil {
		return err
	}
	if c.causePath, err = optionalPath(s.CausePath); err != nil {
		return err
	}
	if c.timeoutSecondsPath, err = optionalPath(s.TimeoutSecondsPath); err != nil {
		return err
	}
	if c.heartbeatSecondsPath, err = optionalPath(s.HeartbeatSecondsPath); err != nil {
		return err
	}
	if c.secondsPath, err = optionalPath(s.SecondsPath); err != nil {
		return err
	}
	if c.timestampPath, err = optionalPath(s.TimestampPath); err != nil {
		return err
	}
	if c.itemsPath, err = optionalPath(s.ItemsPath); err != nil {
		return err
	}

	if s.Type == StateTypeChoice {
		c.choices, err = compileChoiceRules(s.Choices)
		if err != nil {
			return err
		}
	}

	for i := range s.Retry {
		s.Retry[i].compile()
	}
	for i := range s.Catch {
		s.Catch[i].compile()
	}

	s.compiled = c

	if s.Type == StateTypeParallel {
		for i := range s.Branches {
			if err := compileDefinition(&s.Branches[i]); err != nil {
				return err
			}
		}
	}
	if s.Type == StateTypeMap {
		proc := s.ItemProcessor
		if proc == nil {
			proc = s.Iterator
		}
		if err := compileDefinition(proc); err != nil {
			return err
		}
	}
	return nil
}

func optionalPath(raw string) (*DynamicValue, error) {
	if raw == "" {
		return nil, nil
	}
	dv, err := ParseDynamicValue(raw)
	if err != nil {
		return nil, err
	}
	return &dv, nil
}
