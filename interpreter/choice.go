package interpreter

import (
	"fmt"
	"strings"
)

// ChoiceRule is one entry of a Choice state's Choices array. Exactly one of
// a comparison field, Not, And, or Or must be set; Next names the state to
// route to when this rule matches (absent on nested And/Or/Not members).
type ChoiceRule struct {
	Variable string `json:"Variable,omitempty"`
	Next     string `json:"Next,omitempty"`

	StringEquals              *string  `json:"StringEquals,omitempty"`
	StringEqualsPath          *string  `json:"StringEqualsPath,omitempty"`
	StringLessThan            *string  `json:"StringLessThan,omitempty"`
	StringLessThanPath        *string  `json:"StringLessThanPath,omitempty"`
	StringGreaterThan         *string  `json:"StringGreaterThan,omitempty"`
	StringGreaterThanPath     *string  `json:"StringGreaterThanPath,omitempty"`
	StringLessThanEquals      *string  `json:"StringLessThanEquals,omitempty"`
	StringLessThanEqualsPath  *string  `json:"StringLessThanEqualsPath,omitempty"`
	StringGreaterThanEquals   *string  `json:"StringGreaterThanEquals,omitempty"`
	StringGreaterThanEqualsPath *string `json:"StringGreaterThanEqualsPath,omitempty"`
	StringMatches             *string  `json:"StringMatches,omitempty"`

	NumericEquals              *float64 `json:"NumericEquals,omitempty"`
	NumericEqualsPath          *string  `json:"NumericEqualsPath,omitempty"`
	NumericLessThan            *float64 `json:"NumericLessThan,omitempty"`
	NumericLessThanPath        *string  `json:"NumericLessThanPath,omitempty"`
	NumericGreaterThan         *float64 `json:"NumericGreaterThan,omitempty"`
	NumericGreaterThanPath     *string  `json:"NumericGreaterThanPath,omitempty"`
	NumericLessThanEquals      *float64 `json:"NumericLessThanEquals,omitempty"`
	NumericLessThanEqualsPath  *string  `json:"NumericLessThanEqualsPath,omitempty"`
	NumericGreaterThanEquals   *float64 `json:"NumericGreaterThanEquals,omitempty"`
	NumericGreaterThanEqualsPath *string `json:"NumericGreaterThanEqualsPath,omitempty"`

	BooleanEquals *bool `json:"BooleanEquals,omitempty"`

	TimestampEquals              *string `json:"TimestampEquals,omitempty"`
	TimestampEqualsPath          *string `json:"TimestampEqualsPath,omitempty"`
	TimestampLessThan            *string `json:"TimestampLessThan,omitempty"`
	TimestampLessThanPath        *string `json:"TimestampLessThanPath,omitempty"`
	TimestampGreaterThan         *string `json:"TimestampGreaterThan,omitempty"`
	TimestampGreaterThanPath     *string `json:"TimestampGreaterThanPath,omitempty"`
	TimestampLessThanEquals      *string `json:"TimestampLessThanEquals,omitempty"`
	TimestampLessThanEqualsPath  *string `json:"TimestampLessThanEqualsPath,omitempty"`
	TimestampGreaterThanEquals   *string `json:"TimestampGreaterThanEquals,omitempty"`
	TimestampGreaterThanEqualsPath *string `json:"TimestampGreaterThanEqualsPath,omitempty"`

	IsNull      *bool `json:"IsNull,omitempty"`
	IsPresent   *bool `json:"IsPresent,omitempty"`
	IsNumeric   *bool `json:"IsNumeric,omitempty"`
	IsString    *bool `json:"IsString,omitempty"`
	IsBoolean   *bool `json:"IsBoolean,omitempty"`
	IsTimestamp *bool `json:"IsTimestamp,omitempty"`

	Not *ChoiceRule  `json:"Not,omitempty"`
	And []ChoiceRule `json:"And,omitempty"`
	Or  []ChoiceRule `json:"Or,omitempty"`
}

type operationKind int

const (
	opStringEquals operationKind = iota
	opStringLessThan
	opStringGreaterThan
	opStringLessThanEquals
	opStringGreaterThanEquals
	opStringMatches
	opNumericEquals
	opNumericLessThan
	opNumericGreaterThan
	opNumericLessThanEquals
	opNumericGreaterThanEquals
	opBooleanEquals
	opTimestampEquals
	opTimestampLessThan
	opTimestampGreaterThan
	opTimestampLessThanEquals
	opTimestampGreaterThanEquals
	opIsNull
	opIsPresent
	opIsNumeric
	opIsString
	opIsBoolean
	opIsTimestamp
)

type ruleKind int

const (
	ruleComparison ruleKind = iota
	ruleNot
	ruleAnd
	ruleOr
)

// compiledChoiceRule is the parse-time-resolved form of a ChoiceRule: paths
// are compiled, the comparison operand (literal or path) is resolved to a
// single operation, and Next is carried alongside for the top-level rules
// of a Choice state's Choices array.
type compiledChoiceRule struct {
	kind ruleKind
	next string

	variable *DynamicValue
	op       operationKind
	literal  any
	opPath   *DynamicValue

	not *compiledChoiceRule
	and []compiledChoiceRule
	or  []compiledChoiceRule
}

// ChoiceEvaluationErrorKind classifies why evaluating a ChoiceRule failed.
type ChoiceEvaluationErrorKind int

const (
	ChoiceErrWrongType ChoiceEvaluationErrorKind = iota
	ChoiceErrParseTimestamp
	ChoiceErrEvaluate
	ChoiceErrValueNotFound
)

// ChoiceEvaluationError is returned when a Choice rule's operands can't be
// compared as specified (a StringEquals against a non-string value, an
// unparsable TimestampEquals literal, a Variable path with no match, etc).
type ChoiceEvaluationError struct {
	Kind ChoiceEvaluationErrorKind
	Msg  string
}

func (e *ChoiceEvaluationError) Error() string { return e.Msg }

func newChoiceErr(kind ChoiceEvaluationErrorKind, format string, args ...any) *ChoiceEvaluationError {
	return &ChoiceEvaluationError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// compileChoiceRule resolves a ChoiceRule's flattened JSON shape into a
// compiledChoiceRule, picking out whichever single operation field was set.
func compileChoiceRule(r ChoiceRule) (compiledChoiceRule, error) {
	switch {
	case r.Not != nil:
		inner, err := compileChoiceRule(*r.Not)
		if err != nil {
			return compiledChoiceRule{}, err
		}
		return compiledChoiceRule{kind: ruleNot, next: r.Next, not: &inner}, nil
	case r.And != nil:
		compiled, err := compileChoiceRules(r.And)
		if err != nil {
			return compiledChoiceRule{}, err
		}
		return compiledChoiceRule{kind: ruleAnd, next: r.Next, and: compiled}, nil
	case r.Or != nil:
		compiled, err := compileChoiceRules(r.Or)
		if err != nil {
			return compiledChoiceRule{}, err
		}
		return compiledChoiceRule{kind: ruleOr, next: r.Next, or: compiled}, nil
	}

	if r.Variable == "" {
		return compiledChoiceRule{}, fmt.Errorf("interpreter: choice rule missing Variable")
	}
	variable, err := ParseDynamicValue(r.Variable)
	if err != nil {
		return compiledChoiceRule{}, fmt.Errorf("interpreter: choice rule Variable: %w", err)
	}
	c := compiledChoiceRule{kind: ruleComparison, next: r.Next, variable: &variable}

	setLiteral := func(op operationKind, v any) error {
		c.op, c.literal = op, v
		return nil
	}
	setPath := func(op operationKind, raw string) error {
		dv, err := ParseDynamicValue(raw)
		if err != nil {
			return err
		}
		c.op, c.opPath = op, &dv
		return nil
	}

	var perr error
	switch {
	case r.StringEquals != nil:
		perr = setLiteral(opStringEquals, *r.StringEquals)
	case r.StringEqualsPath != nil:
		perr = setPath(opStringEquals, *r.StringEqualsPath)
	case r.StringLessThan != nil:
		perr = setLiteral(opStringLessThan, *r.StringLessThan)
	case r.StringLessThanPath != nil:
		perr = setPath(opStringLessThan, *r.StringLessThanPath)
	case r.StringGreaterThan != nil:
		perr = setLiteral(opStringGreaterThan, *r.StringGreaterThan)
	case r.StringGreaterThanPath != nil:
		perr = setPath(opStringGreaterThan, *r.StringGreaterThanPath)
	case r.StringLessThanEquals != nil:
		perr = setLiteral(opStringLessThanEquals, *r.StringLessThanEquals)
	case r.StringLessThanEqualsPath != nil:
		perr = setPath(opStringLessThanEquals, *r.StringLessThanEqualsPath)
	case r.StringGreaterThanEquals != nil:
		perr = setLiteral(opStringGreaterThanEquals, *r.StringGreaterThanEquals)
	case r.StringGreaterThanEqualsPath != nil:
		perr = setPath(opStringGreaterThanEquals, *r.StringGreaterThanEqualsPath)
	case r.StringMatches != nil:
		perr = setLiteral(opStringMatches, *r.StringMatches)
	case r.NumericEquals != nil:
		perr = setLiteral(opNumericEquals, *r.NumericEquals)
	case r.NumericEqualsPath != nil:
		perr = setPath(opNumericEquals, *r.NumericEqualsPath)
	case r.NumericLessThan != nil:
		perr = setLiteral(opNumericLessThan, *r.NumericLessThan)
	case r.NumericLessThanPath != nil:
		perr = setPath(opNumericLessThan, *r.NumericLessThanPath)
	case r.NumericGreaterThan != nil:
		perr = setLiteral(opNumericGreaterThan, *r.NumericGreaterThan)
	case r.NumericGreaterThanPath != nil:
		perr = setPath(opNumericGreaterThan, *r.NumericGreaterThanPath)
	case r.NumericLessThanEquals != nil:
		perr = setLiteral(opNumericLessThanEquals, *r.NumericLessThanEquals)
	case r.NumericLessThanEqualsPath != nil:
		perr = setPath(opNumericLessThanEquals, *r.NumericLessThanEqualsPath)
	case r.NumericGreaterThanEquals != nil:
		perr = setLiteral(opNumericGreaterThanEquals, *r.NumericGreaterThanEquals)
	case r.NumericGreaterThanEqualsPath != nil:
		perr = setPath(opNumericGreaterThanEquals, *r.NumericGreaterThanEqualsPath)
	case r.BooleanEquals != nil:
		perr = setLiteral(opBooleanEquals, *r.BooleanEquals)
	case r.TimestampEquals != nil:
		perr = setLiteral(opTimestampEquals, *r.TimestampEquals)
	case r.TimestampEqualsPath != nil:
		perr = setPath(opTimestampEquals, *r.TimestampEqualsPath)
	case r.TimestampLessThan != nil:
		perr = setLiteral(opTimestampLessThan, *r.TimestampLessThan)
	case r.TimestampLessThanPath != nil:
		perr = setPath(opTimestampLessThan, *r.TimestampLessThanPath)
	case r.TimestampGreaterThan != nil:
		perr = setLiteral(opTimestampGreaterThan, *r.TimestampGreaterThan)
	case r.TimestampGreaterThanPath != nil:
		perr = setPath(opTimestampGreaterThan, *r.TimestampGreaterThanPath)
	case r.TimestampLessThanEquals != nil:
		perr = setLiteral(opTimestampLessThanEquals, *r.TimestampLessThanEquals)
	case r.TimestampLessThanEqualsPath != nil:
		perr = setPath(opTimestampLessThanEquals, *r.TimestampLessThanEqualsPath)
	case r.TimestampGreaterThanEquals != nil:
		perr = setLiteral(opTimestampGreaterThanEquals, *r.TimestampGreaterThanEquals)
	case r.TimestampGreaterThanEqualsPath != nil:
		perr = setPath(opTimestampGreaterThanEquals, *r.TimestampGreaterThanEqualsPath)
	case r.IsNull != nil:
		perr = setLiteral(opIsNull, *r.IsNull)
	case r.IsPresent != nil:
		perr = setLiteral(opIsPresent, *r.IsPresent)
	case r.IsNumeric != nil:
		perr = setLiteral(opIsNumeric, *r.IsNumeric)
	case r.IsString != nil:
		perr = setLiteral(opIsString, *r.IsString)
	case r.IsBoolean != nil:
		perr = setLiteral(opIsBoolean, *r.IsBoolean)
	case r.IsTimestamp != nil:
		perr = setLiteral(opIsTimestamp, *r.IsTimestamp)
	default:
		return compiledChoiceRule{}, fmt.Errorf("interpreter: choice rule has no comparison operator")
	}
	if perr != nil {
		return compiledChoiceRule{}, perr
	}
	return c, nil
}

func compileChoiceRules(rules []ChoiceRule) ([]compiledChoiceRule, error) {
	out := make([]compiledChoiceRule, len(rules))
	for i, r := range rules {
		c, err := compileChoiceRule(r)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// evaluateChoiceRule reports whether c matches in, per states-language.net
// §choice-state comparison-operator semantics.
func evaluateChoiceRule(c *compiledChoiceRule, in ExecutionInput) (bool, error) {
	switch c.kind {
	case ruleNot:
		res, err := evaluateChoiceRule(c.not, in)
		if err != nil {
			return false, err
		}
		return !res, nil
	case ruleAnd:
		for i := range c.and {
			res, err := evaluateChoiceRule(&c.and[i], in)
			if err != nil {
				return false, err
			}
			if !res {
				return false, nil
			}
		}
		return true, nil
	case ruleOr:
		for i := range c.or {
			res, err := evaluateChoiceRule(&c.or[i], in)
			if err != nil {
				return false, err
			}
			if res {
				return true, nil
			}
		}
		return false, nil
	}

	value, present, err := c.variable.Evaluate(in)
	if err != nil {
		return false, err
	}

	// IsPresent is the one operator meaningful over absence itself; the
	// other Is* type checks are defined to yield false over an absent
	// variable rather than erroring, per spec.md §4.4.
	switch c.op {
	case opIsPresent:
		want, _ := c.literal.(bool)
		return present == want, nil
	case opIsNull, opIsNumeric, opIsString, opIsBoolean, opIsTimestamp:
		if !present {
			return false, nil
		}
	default:
		if !present {
			return false, newChoiceErr(ChoiceErrValueNotFound, "choice rule: variable %q not found in input", c.variable)
		}
	}

	switch c.op {
	case opIsNull:
		want, _ := c.literal.(bool)
		return (value == nil) == want, nil
	case opIsNumeric:
		_, ok := value.(float64)
		want, _ := c.literal.(bool)
		return ok == want, nil
	case opIsString:
		_, ok := value.(string)
		want, _ := c.literal.(bool)
		return ok == want, nil
	case opIsBoolean:
		_, ok := value.(bool)
		want, _ := c.literal.(bool)
		return ok == want, nil
	case opIsTimestamp:
		s, ok := value.(string)
		want, _ := c.literal.(bool)
		if !ok {
			return !want, nil
		}
		_, err := ParseTimestamp(s)
		return (err == nil) == want, nil
	}

	operand, err := c.resolveOperand(in)
	if err != nil {
		return false, err
	}

	switch c.op {
	case opStringEquals, opStringLessThan, opStringGreaterThan, opStringLessThanEquals, opStringGreaterThanEquals, opStringMatches:
		sv, ok := value.(string)
		if !ok {
			return false, newChoiceErr(ChoiceErrWrongType, "choice rule: expected string value, got %T", value)
		}
		so, ok := operand.(string)
		if !ok {
			return false, newChoiceErr(ChoiceErrWrongType, "choice rule: expected string operand, got %T", operand)
		}
		if c.op == opStringMatches {
			return globMatch(so, sv)
		}
		return compareOrdered(c.op, strings.Compare(sv, so)), nil

	case opNumericEquals, opNumericLessThan, opNumericGreaterThan, opNumericLessThanEquals, opNumericGreaterThanEquals:
		nv, ok := asFloat(value)
		if !ok {
			return false, newChoiceErr(ChoiceErrWrongType, "choice rule: expected numeric value, got %T", value)
		}
		no, ok := asFloat(operand)
		if !ok {
			return false, newChoiceErr(ChoiceErrWrongType, "choice rule: expected numeric operand, got %T", operand)
		}
		var cmp int
		switch {
		case nv < no:
			cmp = -1
		case nv > no:
			cmp = 1
		}
		return compareOrdered(c.op, cmp), nil

	case opBooleanEquals:
		bv, ok := value.(bool)
		if !ok {
			return false, newChoiceErr(ChoiceErrWrongType, "choice rule: expected boolean value, got %T", value)
		}
		bo, ok := operand.(bool)
		if !ok {
			return false, newChoiceErr(ChoiceErrWrongType, "choice rule: expected boolean operand, got %T", operand)
		}
		return bv == bo, nil

	case opTimestampEquals, opTimestampLessThan, opTimestampGreaterThan, opTimestampLessThanEquals, opTimestampGreaterThanEquals:
		sv, ok := value.(string)
		if !ok {
			return false, newChoiceErr(ChoiceErrWrongType, "choice rule: expected timestamp (string) value, got %T", value)
		}
		so, ok := operand.(string)
		if !ok {
			return false, newChoiceErr(ChoiceErrWrongType, "choice rule: expected timestamp (string) operand, got %T", operand)
		}
		tv, err := ParseTimestamp(sv)
		if err != nil {
			return false, newChoiceErr(ChoiceErrParseTimestamp, "choice rule: %s", err)
		}
		to, err := ParseTimestamp(so)
		if err != nil {
			return false, newChoiceErr(ChoiceErrParseTimestamp, "choice rule: %s", err)
		}
		var cmp int
		switch {
		case tv.Time().Before(to.Time()):
			cmp = -1
		case tv.Time().After(to.Time()):
			cmp = 1
		}
		return compareOrdered(c.op, cmp), nil
	}

	return false, newChoiceErr(ChoiceErrEvaluate, "choice rule: unsupported operator")
}

func (c *compiledChoiceRule) resolveOperand(in ExecutionInput) (any, error) {
	if c.opPath != nil {
		v, present, err := c.opPath.Evaluate(in)
		if err != nil {
			return nil, err
		}
		if !present {
			return nil, newChoiceErr(ChoiceErrValueNotFound, "choice rule: operand path not found in input")
		}
		return v, nil
	}
	return c.literal, nil
}

func compareOrdered(op operationKind, cmp int) bool {
	switch op {
	case opStringLessThan, opNumericLessThan, opTimestampLessThan:
		return cmp < 0
	case opStringGreaterThan, opNumericGreaterThan, opTimestampGreaterThan:
		return cmp > 0
	case opStringLessThanEquals, opNumericLessThanEquals, opTimestampLessThanEquals:
		return cmp <= 0
	case opStringGreaterThanEquals, opNumericGreaterThanEquals, opTimestampGreaterThanEquals:
		return cmp >= 0
	default: // Equals
		return cmp == 0
	}
}

func asFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

// globMatch implements StringMatches: pattern may contain "*" wildcards
// (matching zero or more characters) escaped by a leading backslash to
// mean a literal "*" or "\\" character, per states-language.net's
// StringMatches grammar.
func globMatch(pattern, s string) (bool, error) {
	var lit []rune
	var wild []bool // wild[i] true means lit[i] is a '*' wildcard, not literal
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '\\':
			if i+1 >= len(runes) || (runes[i+1] != '*' && runes[i+1] != '\\') {
				return false, newChoiceErr(ChoiceErrEvaluate, "choice rule: dangling escape in StringMatches pattern %q", pattern)
			}
			lit = append(lit, runes[i+1])
			wild = append(wild, false)
			i++
		case '*':
			lit = append(lit, '*')
			wild = append(wild, true)
		default:
			lit = append(lit, runes[i])
			wild = append(wild, false)
		}
	}
	return globMatchSegments(lit, wild, []rune(s)), nil
}

func globMatchSegments(pattern []rune, wild []bool, s []rune) bool {
	if len(pattern) == 0 {
		return len(s) == 0
	}
	if wild[0] {
		for i := 0; i <= len(s); i++ {
			if globMatchSegments(pattern[1:], wild[1:], s[i:]) {
				return true
			}
		}
		return false
	}
	if len(s) == 0 || s[0] != pattern[0] {
		return false
	}
	return globMatchSegments(pattern[1:], wild[1:], s[1:])
}
