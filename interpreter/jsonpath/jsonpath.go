// Package jsonpath compiles and evaluates the restricted JSONPath dialect
// used by the Amazon States Language: dot field access, bracket index
// access, and the "[*]"/".*" wildcard. Compilation happens once, at
// definition-parse time; Query walks a decoded JSON document using
// gabs containers for the actual field/index lookups.
package jsonpath

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs/v2"
)

// segmentKind identifies one step of a compiled path.
type segmentKind int

const (
	segField segmentKind = iota
	segIndex
	segWildcard
)

type segment struct {
	kind  segmentKind
	field string
	index int
}

// Path is a compiled JSONPath expression.
type Path struct {
	raw      string
	segments []segment
}

// String returns the original path text the Path was compiled from.
func (p *Path) String() string {
	return p.raw
}

// Compile parses a JSONPath string. The leading "$" is required; a bare
// "$" is the identity path (query returns the whole document).
func Compile(raw string) (*Path, error) {
	if !strings.HasPrefix(raw, "$") {
		return nil, fmt.Errorf("jsonpath: path %q must start with '$'", raw)
	}

	rest := raw[1:]
	p := &Path{raw: raw}

	i := 0
	for i < len(rest) {
		switch rest[i] {
		case '.':
			i++
			if i < len(rest) && rest[i] == '*' {
				p.segments = append(p.segments, segment{kind: segWildcard})
				i++
				continue
			}
			start := i
			for i < len(rest) && rest[i] != '.' && rest[i] != '[' {
				i++
			}
			field := rest[start:i]
			if field == "" {
				return nil, fmt.Errorf("jsonpath: empty field name in %q", raw)
			}
			p.segments = append(p.segments, segment{kind: segField, field: field})
		case '[':
			end := strings.IndexByte(rest[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("jsonpath: unterminated '[' in %q", raw)
			}
			inner := rest[i+1 : i+end]
			i += end + 1
			if inner == "*" {
				p.segments = append(p.segments, segment{kind: segWildcard})
				continue
			}
			inner = strings.Trim(inner, `'"`)
			if idx, err := strconv.Atoi(inner); err == nil {
				p.segments = append(p.segments, segment{kind: segIndex, index: idx})
				continue
			}
			p.segments = append(p.segments, segment{kind: segField, field: inner})
		default:
			return nil, fmt.Errorf("jsonpath: unexpected character %q at position %d in %q", rest[i], i, raw)
		}
	}

	return p, nil
}

// MustCompile is like Compile but panics on error; useful for tests and
// constants known to be valid at compile time.
func MustCompile(raw string) *Path {
	p, err := Compile(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// Query evaluates the path against doc (any decoded JSON value: map,
// slice, or scalar) and returns every matched value. Array matches keep
// element order; the matches of a wildcard over an object come in no
// defined order. A bare "$" path returns the whole document as a single
// match.
func (p *Path) Query(doc any) []any {
	containers := []*gabs.Container{gabs.Wrap(doc)}
	for _, seg := range p.segments {
		var next []*gabs.Container
		for _, c := range containers {
			next = append(next, applySegment(c, seg)...)
		}
		containers = next
		if len(containers) == 0 {
			break
		}
	}

	results := make([]any, 0, len(containers))
	for _, c := range containers {
		if c == nil {
			continue
		}
		results = append(results, c.Data())
	}
	return results
}

func applySegment(c *gabs.Container, seg segment) []*gabs.Container {
	if c == nil {
		return nil
	}
	switch seg.kind {
	case segField:
		child := c.Search(seg.field)
		if child == nil {
			return nil
		}
		return []*gabs.Container{child}
	case segIndex:
		child := c.Index(seg.index)
		if child == nil {
			return nil
		}
		return []*gabs.Container{child}
	case segWildcard:
		if children := c.Children(); children != nil {
			return children
		}
		if childMap := c.ChildrenMap(); childMap != nil {
			out := make([]*gabs.Container, 0, len(childMap))
			for _, v := range childMap {
				out = append(out, v)
			}
			return out
		}
		return nil
	}
	return nil
}
