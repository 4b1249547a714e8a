package interpreter

import "testing"

func mustCompileRule(t *testing.T, r ChoiceRule) compiledChoiceRule {
	t.Helper()
	c, err := compileChoiceRule(r)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	return c
}

func TestChoiceStringEquals(t *testing.T) {
	c := mustCompileRule(t, ChoiceRule{Variable: "$.status", StringEquals: ptr("OK"), Next: "Next"})
	in := ExecutionInput{Value: map[string]any{"status": "OK"}}
	matched, err := evaluateChoiceRule(&c, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !matched {
		t.Error("expected match")
	}
}

func TestChoiceNumericGreaterThan(t *testing.T) {
	c := mustCompileRule(t, ChoiceRule{Variable: "$.count", NumericGreaterThan: f64ptr(5), Next: "Next"})
	in := ExecutionInput{Value: map[string]any{"count": 10.0}}
	matched, err := evaluateChoiceRule(&c, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !matched {
		t.Error("expected 10 > 5 to match")
	}
}

func TestChoiceAndComposition(t *testing.T) {
	rule := ChoiceRule{
		Next: "Next",
		And: []ChoiceRule{
			{Variable: "$.a", BooleanEquals: boolptr(true)},
			{Variable: "$.b", BooleanEquals: boolptr(true)},
		},
	}
	c := mustCompileRule(t, rule)
	in := ExecutionInput{Value: map[string]any{"a": true, "b": false}}
	matched, err := evaluateChoiceRule(&c, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matched {
		t.Error("expected And to fail when one operand is false")
	}
}

func TestChoiceNot(t *testing.T) {
	rule := ChoiceRule{Next: "Next", Not: &ChoiceRule{Variable: "$.flag", BooleanEquals: boolptr(true)}}
	c := mustCompileRule(t, rule)
	in := ExecutionInput{Value: map[string]any{"flag": false}}
	matched, err := evaluateChoiceRule(&c, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !matched {
		t.Error("expected Not(false) to match")
	}
}

func TestChoiceIsPresent(t *testing.T) {
	c := mustCompileRule(t, ChoiceRule{Variable: "$.missing", IsPresent: boolptr(false), Next: "Next"})
	in := ExecutionInput{Value: map[string]any{}}
	matched, err := evaluateChoiceRule(&c, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !matched {
		t.Error("expected IsPresent=false to match a missing field")
	}
}

func TestChoiceVariableNotFoundErrors(t *testing.T) {
	c := mustCompileRule(t, ChoiceRule{Variable: "$.missing", StringEquals: ptr("x"), Next: "Next"})
	in := ExecutionInput{Value: map[string]any{}}
	_, err := evaluateChoiceRule(&c, in)
	if err == nil {
		t.Fatal("expected error for a missing Variable path")
	}
	cerr, ok := err.(*ChoiceEvaluationError)
	if !ok || cerr.Kind != ChoiceErrValueNotFound {
		t.Errorf("expected ChoiceErrValueNotFound, got %#v", err)
	}
}

func TestChoiceIsStringFalseOverAbsentVariable(t *testing.T) {
	c := mustCompileRule(t, ChoiceRule{Variable: "$.missing", IsString: boolptr(true), Next: "Next"})
	in := ExecutionInput{Value: map[string]any{}}
	matched, err := evaluateChoiceRule(&c, in)
	if err != nil {
		t.Fatalf("expected IsString over an absent variable to yield false, not an error: %v", err)
	}
	if matched {
		t.Error("expected IsString=true to not match an absent variable")
	}
}

func TestChoiceIsNumericFalseOverAbsentVariable(t *testing.T) {
	c := mustCompileRule(t, ChoiceRule{Variable: "$.missing", IsNumeric: boolptr(true), Next: "Next"})
	in := ExecutionInput{Value: map[string]any{}}
	matched, err := evaluateChoiceRule(&c, in)
	if err != nil {
		t.Fatalf("expected IsNumeric over an absent variable to yield false, not an error: %v", err)
	}
	if matched {
		t.Error("expected IsNumeric=true to not match an absent variable")
	}
}

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"foo*.log", "foo23.log", true},
		{"*.log", "zebra.log", true},
		{"foo*.*", "foobar.zebra", true},
		{"foo*.log", "bar.log", false},
		{`\*literal`, "*literal", true},
		{`\*literal`, "xliteral", false},
	}
	for _, c := range cases {
		got, err := globMatch(c.pattern, c.s)
		if err != nil {
			t.Fatalf("unexpected error for pattern %q: %v", c.pattern, err)
		}
		if got != c.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", c.pattern, c.s, got, c.want)
		}
	}
}

func ptr(s string) *string    { return &s }
func f64ptr(f float64) *float64 { return &f }
func boolptr(b bool) *bool    { return &b }
