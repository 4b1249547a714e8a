// Package intrinsic implements the registry of ASL intrinsic functions
// (the "States.*" call syntax usable inside Parameters/ResultSelector
// payload templates). It knows how to parse the call syntax and how to
// invoke a function once its arguments have been resolved to plain values;
// it deliberately knows nothing about JSONPath or the context object —
// the caller resolves Path arguments and passes Invoke plain values.
package intrinsic

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ArgKind identifies the syntactic shape of one call argument.
type ArgKind int

const (
	ArgLiteral ArgKind = iota
	ArgInputPath
	ArgContextPath
	ArgCall
)

// Arg is one argument to an intrinsic function call, still in its parsed
// (unevaluated) form.
type Arg struct {
	Kind    ArgKind
	Literal any
	Path    string // raw path text, e.g. "$.foo" or "$$.foo"
	Call    *Call
}

// Call is a parsed "States.Name(arg, arg, ...)" expression.
type Call struct {
	Name string
	Args []Arg
}

// callShape recognizes the outer "States.Word(...)" shape before attempting
// a full parse, so callers can cheaply fall back to treating the string as
// a literal when it isn't intrinsic-function syntax at all.
var callShape = regexp.MustCompile(`^States\.[A-Za-z][A-Za-z0-9]*\(.*\)$`)

// LooksLikeCall reports whether s has the outer shape of an intrinsic
// function call, without validating its arguments.
func LooksLikeCall(s string) bool {
	return callShape.MatchString(s)
}

// ParseError is the static type returned when a string with intrinsic-call
// shape fails to parse (malformed call, empty or unparsable argument).
// Unknown function names and missing arguments have their own types.
type ParseError struct {
	msg string
}

func (e *ParseError) Error() string { return e.msg }

// UnknownFunctionError reports a syntactically valid call to an
// unregistered function name.
type UnknownFunctionError struct{ Name string }

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("intrinsic: the string %q does not name a known intrinsic function", e.Name)
}

// InsufficientArgumentsError reports a call with fewer arguments than the
// function requires.
type InsufficientArgumentsError struct {
	Name     string
	Expected int
	Actual   int
}

func (e *InsufficientArgumentsError) Error() string {
	return fmt.Sprintf("intrinsic: %s expected at least %d arguments, got %d", e.Name, e.Expected, e.Actual)
}

// Parse parses s as an intrinsic function call. Call LooksLikeCall first;
// Parse assumes the outer shape already matches. It returns an
// *UnknownFunctionError for an unregistered name, an
// *InsufficientArgumentsError for too few arguments, and a *ParseError
// for any other failure inside that shape.
func Parse(s string) (*Call, error) {
	name, argsText, err := splitCall(s)
	if err != nil {
		return nil, err
	}
	if _, ok := registry[name]; !ok {
		return nil, &UnknownFunctionError{Name: name}
	}
	args, err := parseArgs(argsText)
	if err != nil {
		return nil, err
	}
	def := registry[name]
	if len(args) < def.minArgs {
		return nil, &InsufficientArgumentsError{Name: name, Expected: def.minArgs, Actual: len(args)}
	}
	return &Call{Name: name, Args: args}, nil
}

func splitCall(s string) (name, argsText string, err error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return "", "", &ParseError{msg: fmt.Sprintf("intrinsic: malformed call %q", s)}
	}
	name = s[:open]
	argsText = s[open+1 : len(s)-1]
	return name, argsText, nil
}

// parseArgs splits a comma-separated argument list, respecting nested
// parens/brackets and single-quoted string literals (ASL uses single
// quotes for string literals inside intrinsic calls since double quotes
// delimit the surrounding JSON string).
func parseArgs(s string) ([]Arg, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var parts []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' && !inQuote:
			inQuote = true
		case c == '\'' && inQuote:
			inQuote = false
		case inQuote:
			// inside a quoted literal, ignore structural characters
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])

	args := make([]Arg, 0, len(parts))
	for _, p := range parts {
		arg, err := parseArg(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

func parseArg(s string) (Arg, error) {
	switch {
	case s == "":
		return Arg{}, &ParseError{msg: "intrinsic: empty argument"}
	case LooksLikeCall(s):
		call, err := Parse(s)
		if err != nil {
			return Arg{}, err
		}
		return Arg{Kind: ArgCall, Call: call}, nil
	case strings.HasPrefix(s, "$$"):
		return Arg{Kind: ArgContextPath, Path: s}, nil
	case strings.HasPrefix(s, "$"):
		return Arg{Kind: ArgInputPath, Path: s}, nil
	case strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") && len(s) >= 2:
		return Arg{Kind: ArgLiteral, Literal: s[1 : len(s)-1]}, nil
	case s == "true" || s == "false":
		return Arg{Kind: ArgLiteral, Literal: s == "true"}, nil
	case s == "null":
		return Arg{Kind: ArgLiteral, Literal: nil}, nil
	default:
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return Arg{Kind: ArgLiteral, Literal: n}, nil
		}
		return Arg{}, &ParseError{msg: fmt.Sprintf("intrinsic: can't parse argument %q", s)}
	}
}

// ExecutionError is returned by Invoke when a resolved argument has the
// wrong runtime type for the function it was passed to.
type ExecutionError struct {
	msg string
}

func (e *ExecutionError) Error() string { return e.msg }

type funcDef struct {
	minArgs int
	eval    func(args []any) (any, error)
}

var registry = map[string]funcDef{
	"States.Format": {
		minArgs: 1,
		eval: func(args []any) (any, error) {
			template, ok := args[0].(string)
			if !ok {
				return nil, &ExecutionError{msg: "States.Format: first argument must be a string"}
			}
			rest := args[1:]
			var b strings.Builder
			argIdx := 0
			for i := 0; i < len(template); i++ {
				if template[i] == '{' && i+1 < len(template) && template[i+1] == '}' {
					if argIdx >= len(rest) {
						return nil, &ExecutionError{msg: "States.Format: not enough arguments for template placeholders"}
					}
					fmt.Fprintf(&b, "%v", rest[argIdx])
					argIdx++
					i++
					continue
				}
				b.WriteByte(template[i])
			}
			return b.String(), nil
		},
	},
	"States.StringToJson": {
		minArgs: 1,
		eval: func(args []any) (any, error) {
			s, ok := args[0].(string)
			if !ok {
				return nil, &ExecutionError{msg: "States.StringToJson: argument must be a string"}
			}
			var v any
			if err := json.Unmarshal([]byte(s), &v); err != nil {
				return nil, &ExecutionError{msg: fmt.Sprintf("States.StringToJson: %s", err)}
			}
			return v, nil
		},
	},
	"States.JsonToString": {
		minArgs: 1,
		eval: func(args []any) (any, error) {
			b, err := json.Marshal(args[0])
			if err != nil {
				return nil, &ExecutionError{msg: fmt.Sprintf("States.JsonToString: %s", err)}
			}
			return string(b), nil
		},
	},
	"States.Array": {
		minArgs: 0,
		eval: func(args []any) (any, error) {
			out := make([]any, len(args))
			copy(out, args)
			return out, nil
		},
	},
	"States.ArrayLength": {
		minArgs: 1,
		eval: func(args []any) (any, error) {
			arr, ok := args[0].([]any)
			if !ok {
				return nil, &ExecutionError{msg: "States.ArrayLength: argument must be an array"}
			}
			return float64(len(arr)), nil
		},
	},
	"States.UUID": {
		minArgs: 0,
		eval: func(args []any) (any, error) {
			return uuid.New().String(), nil
		},
	},
}

// Invoke dispatches to the named function with already-resolved arguments.
func Invoke(name string, args []any) (any, error) {
	def, ok := registry[name]
	if !ok {
		return nil, &UnknownFunctionError{Name: name}
	}
	if len(args) < def.minArgs {
		return nil, &InsufficientArgumentsError{Name: name, Expected: def.minArgs, Actual: len(args)}
	}
	return def.eval(args)
}
