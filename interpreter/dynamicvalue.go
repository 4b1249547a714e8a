package interpreter

import (
	"fmt"
	"strings"

	"asl/interpreter/intrinsic"
	"asl/interpreter/jsonpath"
)

// DynamicValueKind identifies which of the four DynamicValue variants a
// parsed string resolved to.
type DynamicValueKind int

const (
	KindInputPath DynamicValueKind = iota
	KindContextPath
	KindIntrinsicFunction
	KindLiteral
)

// DynamicValue is a parse-time union resolving at evaluation time to a
// concrete Value: a literal, an input/context path query, or an intrinsic
// function call. See spec.md §3/§4.2 for the classification rules.
type DynamicValue struct {
	Kind    DynamicValueKind
	Path    *jsonpath.Path
	Call    *intrinsic.Call
	Literal Value
}

// ParseDynamicValue classifies a raw string per the ordered rules in
// spec.md §4.2:
//  1. "$$..." -> ContextPath (path compiled from the substring after the
//     leading "$").
//  2. "$..." -> InputPath.
//  3. a recognized intrinsic function call -> IntrinsicFunction.
//  4. anything else -> Literal(string).
func ParseDynamicValue(raw string) (DynamicValue, error) {
	switch {
	case strings.HasPrefix(raw, "$$"):
		p, err := jsonpath.Compile(raw[1:])
		if err != nil {
			return DynamicValue{}, fmt.Errorf("parsing context path %q: %w", raw, err)
		}
		return DynamicValue{Kind: KindContextPath, Path: p}, nil
	case strings.HasPrefix(raw, "$"):
		p, err := jsonpath.Compile(raw)
		if err != nil {
			return DynamicValue{}, fmt.Errorf("parsing input path %q: %w", raw, err)
		}
		return DynamicValue{Kind: KindInputPath, Path: p}, nil
	case intrinsic.LooksLikeCall(raw):
		call, err := intrinsic.Parse(raw)
		if err != nil {
			return DynamicValue{}, fmt.Errorf("parsing intrinsic function %q: %w", raw, err)
		}
		return DynamicValue{Kind: KindIntrinsicFunction, Call: call}, nil
	default:
		return DynamicValue{Kind: KindLiteral, Literal: raw}, nil
	}
}

// String renders the DynamicValue for error messages; it is not a
// roundtrippable serialization.
func (dv DynamicValue) String() string {
	switch dv.Kind {
	case KindInputPath, KindContextPath:
		return dv.Path.String()
	case KindIntrinsicFunction:
		return dv.Call.Name + "(...)"
	default:
		return fmt.Sprintf("%v", dv.Literal)
	}
}

// LiteralDynamicValue wraps an already-known Value as a Literal
// DynamicValue, for payload-template fields that are not strings at all
// (numbers, booleans, nested objects/arrays copied verbatim).
func LiteralDynamicValue(v Value) DynamicValue {
	return DynamicValue{Kind: KindLiteral, Literal: v}
}

// IntrinsicFunctionExecutionError wraps a failure raised while invoking an
// intrinsic function at evaluation time (as opposed to a parse-time
// syntax/arity error).
type IntrinsicFunctionExecutionError struct {
	Name string
	Err  error
}

func (e *IntrinsicFunctionExecutionError) Error() string {
	return fmt.Sprintf("evaluating intrinsic function %s: %s", e.Name, e.Err)
}

func (e *IntrinsicFunctionExecutionError) Unwrap() error { return e.Err }

// Evaluate resolves the DynamicValue against in, returning (Some, true),
// (None, false) for a path with zero matches, or an error.
func (dv DynamicValue) Evaluate(in ExecutionInput) (Value, bool, error) {
	switch dv.Kind {
	case KindLiteral:
		return dv.Literal, true, nil
	case KindInputPath:
		return queryOne(dv.Path, in.Value), queryPresent(dv.Path, in.Value), nil
	case KindContextPath:
		ctxValue := Value(nil)
		if in.Context != nil {
			ctxValue = in.Context.AsValue()
		}
		return queryOne(dv.Path, ctxValue), queryPresent(dv.Path, ctxValue), nil
	case KindIntrinsicFunction:
		v, err := evaluateCall(dv.Call, in)
		if err != nil {
			return nil, false, &IntrinsicFunctionExecutionError{Name: dv.Call.Name, Err: err}
		}
		return v, true, nil
	}
	return nil, false, fmt.Errorf("unknown DynamicValue kind %d", dv.Kind)
}

func queryPresent(p *jsonpath.Path, doc any) bool {
	return len(p.Query(doc)) > 0
}

// queryOne implements the path-evaluation aggregation rule from spec.md
// §4.2: zero matches is handled by the caller (via queryPresent), one match
// is returned directly, more than one is wrapped as an array.
func queryOne(p *jsonpath.Path, doc any) Value {
	results := p.Query(doc)
	switch len(results) {
	case 0:
		return nil
	case 1:
		return results[0]
	default:
		return results
	}
}

func evaluateCall(call *intrinsic.Call, in ExecutionInput) (Value, error) {
	args := make([]any, len(call.Args))
	for i, a := range call.Args {
		v, err := evaluateIntrinsicArg(a, in)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return intrinsic.Invoke(call.Name, args)
}

func evaluateIntrinsicArg(a intrinsic.Arg, in ExecutionInput) (any, error) {
	switch a.Kind {
	case intrinsic.ArgLiteral:
		return a.Literal, nil
	case intrinsic.ArgInputPath:
		dv, err := ParseDynamicValue(a.Path)
		if err != nil {
			return nil, err
		}
		v, _, err := dv.Evaluate(in)
		return v, err
	case intrinsic.ArgContextPath:
		dv, err := ParseDynamicValue(a.Path)
		if err != nil {
			return nil, err
		}
		v, _, err := dv.Evaluate(in)
		return v, err
	case intrinsic.ArgCall:
		return evaluateCall(a.Call, in)
	}
	return nil, fmt.Errorf("unknown intrinsic argument kind %d", a.Kind)
}
