// Package tagpath implements the small dynamic-JSON-traversal DSL called
// for by spec.md §9: a tag path is a non-empty sequence of steps, each
// either a map-key string or an integer list index; descending a value
// along a path returns a leaf or a structured error. It replaces reflection
// with a single recursive function, ported from the original bagger's
// metadata.py _descend_json.
package tagpath

import "fmt"

// Step is one element of a tag path: either a map key (Key != "") or a
// list index (IsIndex true).
type Step struct {
	Key     string
	Index   int
	IsIndex bool
}

// Path is a non-empty ordered sequence of Steps.
type Path []Step

// Key builds a map-key step.
func Key(k string) Step { return Step{Key: k} }

// Idx builds a list-index step.
func Idx(i int) Step { return Step{Index: i, IsIndex: true} }

// ParsePath splits a dot-separated tag_source string into a Path. Pure
// dot-separated map descent is the only form the bagger's TOML config
// actually uses; integer steps are reachable via Idx for callers that
// construct a Path directly (e.g. list-valued intermediate nodes).
func ParsePath(dotted string) Path {
	if dotted == "" {
		return nil
	}
	var steps Path
	start := 0
	for i := 0; i <= len(dotted); i++ {
		if i == len(dotted) || dotted[i] == '.' {
			steps = append(steps, Key(dotted[start:i]))
			start = i + 1
		}
	}
	return steps
}

// Error reports a failed descent: which step failed and why.
type Error struct {
	Path  Path
	Step  int
	Cause string
}

func (e *Error) Error() string {
	return fmt.Sprintf("tagpath: step %d of %v failed: %s", e.Step, e.Path, e.Cause)
}

// Descend walks value along path, returning the leaf it names. The leaf
// must stringify cleanly (string, number, bool); nested maps/lists at the
// final step are an error, matching the original implementation's
// leaf-or-KeyError contract.
func Descend(value interface{}, path Path) (string, error) {
	if len(path) == 0 {
		return "", &Error{Path: path, Step: 0, Cause: "empty tag path"}
	}

	current := value
	for i, step := range path {
		next, err := descendOne(current, step)
		if err != nil {
			return "", &Error{Path: path, Step: i, Cause: err.Error()}
		}
		current = next
	}

	return leafToString(current)
}

func descendOne(value interface{}, step Step) (interface{}, error) {
	if step.IsIndex {
		list, ok := value.([]interface{})
		if !ok {
			return nil, fmt.Errorf("expected a list, got %T", value)
		}
		if step.Index < 0 || step.Index >= len(list) {
			return nil, fmt.Errorf("index %d out of range (len %d)", step.Index, len(list))
		}
		return list[step.Index], nil
	}

	m, ok := value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a map, got %T", value)
	}
	v, ok := m[step.Key]
	if !ok {
		return nil, fmt.Errorf("key %q not found", step.Key)
	}
	return v, nil
}

func leafToString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		if v {
			return "true", nil
		}
		return "false", nil
	case float64:
		return formatFloat(v), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("value at leaf is not scalar: %T", value)
	}
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
