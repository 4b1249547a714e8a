package interpreter

import (
	"encoding/json"
	"fmt"
	"strings"
)

// payloadTemplate is a compiled Parameters/ResultSelector/ItemSelector
// payload template: a JSON tree where any object key ending in ".$" has its
// string value compiled to a DynamicValue and is re-keyed (the ".$" suffix
// stripped) at compile time; the DynamicValue itself is resolved at
// evaluation time, per states-language.net's payload-template grammar.
type payloadTemplate struct {
	node templateNode
}

// templateNode mirrors encoding/json's decoded shape (map[string]any,
// []any, or a scalar) except that string leaves either stay literal or
// become a *DynamicValue when their key carried the ".$" suffix.
type templateNode struct {
	object map[string]templateNode // children of an object node; ".$" keys are stored with the suffix stripped
	array  []templateNode
	dyn    *DynamicValue
	lit    any
	isObj  bool
	isArr  bool
}

// compilePayloadTemplate parses raw (a JSON object, or nil/empty for "no
// template") into a payloadTemplate. A nil return means "no template": the
// caller should pass its input through unchanged.
func compilePayloadTemplate(raw json.RawMessage) (*payloadTemplate, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("interpreter: malformed payload template: %w", err)
	}
	node, err := compileTemplateNode(v)
	if err != nil {
		return nil, err
	}
	return &payloadTemplate{node: node}, nil
}

func compileTemplateNode(v any) (templateNode, error) {
	switch t := v.(type) {
	case map[string]any:
		obj := make(map[string]templateNode, len(t))
		for k, raw := range t {
			if strings.HasSuffix(k, ".$") {
				s, ok := raw.(string)
				if !ok {
					return templateNode{}, fmt.Errorf("interpreter: payload template key %q requires a string path/intrinsic value", k)
				}
				dv, err := ParseDynamicValue(s)
				if err != nil {
					return templateNode{}, fmt.Errorf("interpreter: payload template key %q: %w", k, err)
				}
				obj[strings.TrimSuffix(k, ".$")] = templateNode{dyn: &dv}
				continue
			}
			child, err := compileTemplateNode(raw)
			if err != nil {
				return templateNode{}, err
			}
			obj[k] = child
		}
		return templateNode{object: obj, isObj: true}, nil
	case []any:
		arr := make([]templateNode, len(t))
		for i, raw := range t {
			child, err := compileTemplateNode(raw)
			if err != nil {
				return templateNode{}, err
			}
			arr[i] = child
		}
		return templateNode{array: arr, isArr: true}, nil
	default:
		return templateNode{lit: v}, nil
	}
}

// ParameterPathError wraps a failure to resolve a ".$"-suffixed path or
// intrinsic call while evaluating a payload template; it carries
// States.ParameterPathFailure semantics (§error_handling.rs /
// error_handling.rs: ParameterPathFailure).
type ParameterPathError struct {
	Key string
	Err error
}

func (e *ParameterPathError) Error() string {
	return fmt.Sprintf("parameter path failure at %q: %s", e.Key, e.Err)
}

func (e *ParameterPathError) Unwrap() error { return e.Err }

func (t *payloadTemplate) evaluate(in ExecutionInput) (Value, error) {
	return evaluateTemplateNode(t.node, in, "$")
}

func evaluateTemplateNode(n templateNode, in ExecutionInput, path string) (Value, error) {
	switch {
	case n.dyn != nil:
		v, present, err := n.dyn.Evaluate(in)
		if err != nil {
			return nil, &ParameterPathError{Key: path, Err: err}
		}
		if !present {
			return nil, &ParameterPathError{Key: path, Err: fmt.Errorf("path %q matched nothing", n.dyn)}
		}
		return v, nil
	case n.isObj:
		out := make(map[string]any, len(n.object))
		for k, child := range n.object {
			v, err := evaluateTemplateNode(child, in, path+"."+k)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	case n.isArr:
		out := make([]any, len(n.array))
		for i, child := range n.array {
			v, err := evaluateTemplateNode(child, in, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		return n.lit, nil
	}
}

// ResultPathError reports a ResultPath that could not be applied to the
// state's original input (States.ResultPathMatchFailure).
type ResultPathError struct {
	Path string
	Err  error
}

func (e *ResultPathError) Error() string {
	return fmt.Sprintf("result path %q could not be applied: %s", e.Path, e.Err)
}

// applyInputPath resolves InputPath against raw input, defaulting to "$"
// (pass the whole input through) when rawPath is empty.
func applyInputPath(rawPath string, input Value) (Value, error) {
	if rawPath == "" || rawPath == "$" {
		return input, nil
	}
	dv, err := ParseDynamicValue(rawPath)
	if err != nil {
		return nil, err
	}
	v, present, err := dv.Evaluate(ExecutionInput{Value: input})
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, fmt.Errorf("interpreter: InputPath %q matched nothing", rawPath)
	}
	return v, nil
}

// applyOutputPath resolves OutputPath against a state's pre-output value,
// defaulting to "$" (pass through unchanged).
func applyOutputPath(rawPath string, value Value) (Value, error) {
	return applyInputPath(rawPath, value)
}

// applyResultPath merges result into originalInput per ResultPath's
// merge semantics:
//   - ResultPath == "" or "$" (the default): the state's output is
//     result itself, discarding originalInput.
//   - a JSON null ResultPath decodes to "" and is therefore treated like
//     "$": the result replaces the input. Discarding the result and
//     keeping the original input is not supported.
//   - otherwise: result is written into originalInput at the path,
//     creating intermediate objects as needed, and the combined document
//     is returned.
func applyResultPath(rawPath string, originalInput Value, result Value) (Value, error) {
	if rawPath == "" || rawPath == "$" {
		return result, nil
	}
	merged, err := setAtPath(originalInput, rawPath, result)
	if err != nil {
		return nil, &ResultPathError{Path: rawPath, Err: err}
	}
	return merged, nil
}

// setAtPath writes value at the single-field-chain path rawPath (e.g.
// "$.foo.bar") into a shallow copy of doc, creating intermediate objects
// as needed. ASL's ResultPath grammar only allows field-reference paths
// (no wildcards, no array indexing) as the write target.
func setAtPath(doc Value, rawPath string, value Value) (Value, error) {
	if !strings.HasPrefix(rawPath, "$") {
		return nil, fmt.Errorf("interpreter: ResultPath must start with \"$\", got %q", rawPath)
	}
	fields := strings.Split(strings.TrimPrefix(rawPath, "$"), ".")
	var keys []string
	for _, f := range fields {
		if f == "" {
			continue
		}
		keys = append(keys, f)
	}

	root, ok := doc.(map[string]any)
	if !ok {
		root = map[string]any{}
		if doc != nil {
			return nil, fmt.Errorf("interpreter: cannot apply ResultPath to non-object input of type %T", doc)
		}
	} else {
		copied := make(map[string]any, len(root))
		for k, v := range root {
			copied[k] = v
		}
		root = copied
	}
	if len(keys) == 0 {
		return value, nil
	}
	cur := root
	for i, k := range keys {
		if i == len(keys)-1 {
			cur[k] = value
			break
		}
		next, ok := cur[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[k] = next
		} else {
			copied := make(map[string]any, len(next))
			for kk, vv := range next {
				copied[kk] = vv
			}
			next = copied
			cur[k] = next
		}
		cur = next
	}
	return root, nil
}
