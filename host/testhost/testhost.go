// Package testhost implements a scriptable interpreter.Host driven by a
// YAML fixture file, for exercising a state machine definition end to end
// without standing up real Task infrastructure. Each rule names the
// Resource it answers for, an optional "when" expr-lang predicate
// evaluated against the task's input, and either a literal result or an
// error to raise.
package testhost

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/expr-lang/expr"
	"gopkg.in/yaml.v3"

	"asl/interpreter"
)

// Rule is one entry of a Host's fixture: it answers Execute calls for
// Resource, optionally gated by When.
type Rule struct {
	Resource string         `yaml:"resource"`
	When     string         `yaml:"when,omitempty"`
	Result   any            `yaml:"result,omitempty"`
	Error    string         `yaml:"error,omitempty"`
	Cause    string         `yaml:"cause,omitempty"`
	Sleep    time.Duration  `yaml:"sleep,omitempty"`
}

// Fixture is the top-level shape of a testhost YAML file.
type Fixture struct {
	Rules []Rule `yaml:"rules"`
}

// Host answers Task calls from a Fixture's Rules, in declaration order,
// and records every Execute call it received for test assertions. Wait
// calls return immediately.
type Host struct {
	fixture Fixture
	Calls   []Call
	log     *slog.Logger
}

// Call records one Execute invocation, for assertions in tests that use
// Host as their interpreter.TaskExecutor.
type Call struct {
	Resource string
	Input    interpreter.Value
}

// Load parses raw YAML into a Host.
func Load(raw []byte) (*Host, error) {
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("testhost: malformed fixture: %w", err)
	}
	return &Host{fixture: f, log: slog.Default()}, nil
}

// Execute implements interpreter.TaskExecutor.
func (h *Host) Execute(ctx context.Context, resource string, input interpreter.Value) (interpreter.Value, error) {
	h.Calls = append(h.Calls, Call{Resource: resource, Input: input})
	h.log.InfoContext(ctx, "dispatching task", "resource", resource)

	for _, rule := range h.fixture.Rules {
		if rule.Resource != resource {
			continue
		}
		matched, err := evalWhen(rule.When, input)
		if err != nil {
			h.log.ErrorContext(ctx, "evaluating rule 'when' failed", "resource", resource, "error", err)
			return nil, fmt.Errorf("testhost: evaluating 'when' for resource %q: %w", resource, err)
		}
		if !matched {
			continue
		}
		if rule.Error != "" {
			h.log.ErrorContext(ctx, "task matched a failing rule", "resource", resource, "error", rule.Error)
			return nil, &interpreter.ExecutionError{Error: interpreter.CustomError(rule.Error), Cause: causePtr(rule.Cause)}
		}
		h.log.InfoContext(ctx, "task matched a rule", "resource", resource)
		return rule.Result, nil
	}
	h.log.ErrorContext(ctx, "no rule matched task resource", "resource", resource)
	return nil, fmt.Errorf("testhost: no rule matched resource %q", resource)
}

// Sleep implements interpreter.Sleeper by returning immediately: fixture
// tests never want to pay Wait states' real delay. The requested duration
// is not recorded, and Host never reads Rule.Sleep.
func (h *Host) Sleep(ctx context.Context, d time.Duration) error {
	return nil
}

func evalWhen(when string, input interpreter.Value) (bool, error) {
	if when == "" {
		return true, nil
	}
	env := map[string]any{"input": input}
	program, err := expr.Compile(when, expr.Env(env), expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return false, err
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	b, _ := out.(bool)
	return b, nil
}

func causePtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
