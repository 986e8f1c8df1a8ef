package item

import (
	"fmt"
	"sort"
	"strings"
)

// Field names shared by extraction, templating and the tracker payload.
const (
	FieldSummary            = "summary"
	FieldDescription        = "description"
	FieldLabels             = "labels"
	FieldAssignee           = "assignee"
	FieldPriority           = "priority"
	FieldEpicName           = "epic_name"
	FieldObjective          = "objective"
	FieldBenefits           = "benefits"
	FieldRisks              = "risks"
	FieldAsA                = "as_a"
	FieldIWant              = "i_want"
	FieldSoThat             = "so_that"
	FieldUserStoryFormat    = "user_story_format"
	FieldPreconditions      = "preconditions"
	FieldRules              = "rules"
	FieldExceptions         = "exceptions"
	FieldAcceptanceCriteria = "acceptance_criteria"
	FieldTestScenarios      = "test_scenarios"
	FieldErrorScenario      = "error_scenario"
	FieldExpectedScenario   = "expected_scenario"
	FieldImpact             = "impact"
	FieldOrigin             = "origin"
	FieldSolution           = "solution"
	FieldStepsToReproduce   = "steps_to_reproduce"
	FieldSeverity           = "severity"
	FieldEpicLink           = "epic_link"
	FieldStoryLink          = "story_link"
	FieldParentKey          = "parent_key"
)

// FieldSet maps field names to values scoped to one item. A value is either a
// string or an ordered []string.
type FieldSet map[string]any

// Get returns the field as a string. List values are joined with newlines.
func (f FieldSet) Get(name string) string {
	switch v := f[name].(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, "\n")
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// List returns the field as a list. String values are split on newlines and
// blank lines are dropped.
func (f FieldSet) List(name string) []string {
	switch v := f[name].(type) {
	case []string:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		var out []string
		for _, line := range strings.Split(v, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, line)
			}
		}
		return out
	}
	return nil
}

// Has reports whether the field is present, even if empty.
func (f FieldSet) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// Empty reports whether the field is absent or blank.
func (f FieldSet) Empty(name string) bool {
	switch v := f[name].(type) {
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(f.List(name)) == 0
	case nil:
		return true
	}
	return false
}

// Set stores a string value.
func (f FieldSet) Set(name, value string) { f[name] = value }

// SetList stores a list value.
func (f FieldSet) SetList(name string, values []string) { f[name] = values }

// SetIfEmpty stores value only when the field is absent or blank.
func (f FieldSet) SetIfEmpty(name, value string) {
	if f.Empty(name) && value != "" {
		f[name] = value
	}
}

// Clone returns a copy that shares no list backing arrays with f.
func (f FieldSet) Clone() FieldSet {
	out := make(FieldSet, len(f))
	for k, v := range f {
		if list, ok := v.([]string); ok {
			v = append([]string(nil), list...)
		}
		out[k] = v
	}
	return out
}

// Names returns the field names in sorted order.
func (f FieldSet) Names() []string {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// FromJSON converts a decoded JSON object into a FieldSet. Arrays become
// []string, scalars are stringified and nulls are dropped.
func FromJSON(m map[string]any) FieldSet {
	out := make(FieldSet, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		case []any:
			list := make([]string, 0, len(val))
			for _, e := range val {
				if e == nil {
					continue
				}
				if s, ok := e.(string); ok {
					list = append(list, s)
				} else {
					list = append(list, fmt.Sprint(e))
				}
			}
			out[k] = list
		case []string:
			out[k] = append([]string(nil), val...)
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}
