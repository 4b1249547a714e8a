// Package interpreter implements an interpreter for the Amazon States
// Language: it parses a JSON state-machine definition, walks the state
// graph one state at a time, and delegates side-effecting work (task
// invocation, sleeping) to a host supplied by the embedder.
package interpreter

import (
	"fmt"
	"time"
)

// Value is the JSON value type the interpreter operates on: nil, bool,
// float64, string, []Value, or map[string]Value (via encoding/json's
// default decoding into any).
type Value = any

// Timestamp is an instant in UTC, parsed from an RFC-3339 string.
type Timestamp struct {
	t time.Time
}

// ParseTimestamp parses an RFC-3339 timestamp string.
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return Timestamp{t: t.UTC()}, nil
}

// SecondsUntilNow returns the non-negative number of seconds between now
// and the timestamp, clamped at zero for timestamps in the past.
func (ts Timestamp) SecondsUntilNow() float64 {
	d := time.Until(ts.t).Seconds()
	if d < 0 {
		return 0
	}
	return d
}

func (ts Timestamp) String() string {
	return ts.t.Format(time.RFC3339)
}

// Time returns the underlying time.Time.
func (ts Timestamp) Time() time.Time {
	return ts.t
}
