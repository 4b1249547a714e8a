package interpreter

import "testing"

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{not json`))
	perr, ok := err.(*ParseError)
	if !ok || perr.Kind != ParseErrMalformedInput {
		t.Fatalf("expected ParseErrMalformedInput, got %#v", err)
	}
}

func TestParseRejectsMissingStartState(t *testing.T) {
	_, err := Parse([]byte(`{
		"StartAt": "Missing",
		"States": {"Other": {"Type": "Succeed"}}
	}`))
	perr, ok := err.(*ParseError)
	if !ok || perr.Kind != ParseErrStartStateNotDefined {
		t.Fatalf("expected ParseErrStartStateNotDefined, got %#v", err)
	}
}

func TestParseRejectsDanglingNext(t *testing.T) {
	_, err := Parse([]byte(`{
		"StartAt": "A",
		"States": {"A": {"Type": "Pass", "Next": "Nowhere"}}
	}`))
	perr, ok := err.(*ParseError)
	if !ok || perr.Kind != ParseErrDanglingTransition {
		t.Fatalf("expected ParseErrDanglingTransition, got %#v", err)
	}
}

func TestParseRejectsBothNextAndEnd(t *testing.T) {
	_, err := Parse([]byte(`{
		"StartAt": "A",
		"States": {"A": {"Type": "Pass", "Next": "A", "End": true}}
	}`))
	perr, ok := err.(*ParseError)
	if !ok || perr.Kind != ParseErrInvalidStateShape {
		t.Fatalf("expected ParseErrInvalidStateShape, got %#v", err)
	}
}

func TestParseRejectsFailStateWithInputPath(t *testing.T) {
	_, err := Parse([]byte(`{
		"StartAt": "A",
		"States": {"A": {"Type": "Fail", "Error": "X", "InputPath": "$.foo"}}
	}`))
	if err == nil {
		t.Fatal("expected Fail with InputPath to be rejected")
	}
}

func TestParseRejectsChoiceWithoutChoices(t *testing.T) {
	_, err := Parse([]byte(`{
		"StartAt": "A",
		"States": {"A": {"Type": "Choice", "Choices": []}}
	}`))
	if err == nil {
		t.Fatal("expected empty Choices array to be rejected")
	}
}

func TestParseAcceptsHelloWorld(t *testing.T) {
	def, err := Parse([]byte(`{
		"Comment": "hello world",
		"StartAt": "Hello World",
		"States": {
			"Hello World": {"Type": "Task", "Resource": "return", "End": true}
		}
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.StartAt != "Hello World" {
		t.Errorf("unexpected StartAt: %s", def.StartAt)
	}
	state := def.States["Hello World"]
	if state.compiled == nil {
		t.Fatal("expected state to be compiled")
	}
}

func TestParseCompilesNestedParallelBranches(t *testing.T) {
	def, err := Parse([]byte(`{
		"StartAt": "Fork",
		"States": {
			"Fork": {
				"Type": "Parallel",
				"End": true,
				"Branches": [
					{"StartAt": "A", "States": {"A": {"Type": "Pass", "End": true}}}
				]
			}
		}
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	branchState := def.States["Fork"].Branches[0].States["A"]
	if branchState.compiled == nil {
		t.Fatal("expected branch state to be compiled")
	}
}
