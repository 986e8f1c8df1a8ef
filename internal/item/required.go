package item

import (
	"fmt"
	"strings"
)

// requiredFields lists the non-empty fields each type needs before rendering.
var requiredFields = map[Type][]string{
	TypeEpic:    {FieldSummary, FieldDescription},
	TypeStory:   {FieldSummary, FieldDescription},
	TypeTask:    {FieldSummary, FieldDescription},
	TypeSubtask: {FieldSummary, FieldDescription, FieldParentKey},
	TypeBug:     {FieldSummary, FieldDescription},
	TypeSubBug:  {FieldSummary, FieldDescription, FieldParentKey},
}

// RequiredFields returns the mandatory fields for t, or nil for an unknown type.
func RequiredFields(t Type) []string {
	fields, ok := requiredFields[t]
	if !ok {
		return nil
	}
	return append([]string(nil), fields...)
}

// ValidationError reports every required field missing from a FieldSet.
type ValidationError struct {
	Type    Type
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields for %s: %s", e.Type, strings.Join(e.Missing, ", "))
}

// Validate checks fs against the required fields of t. It returns a
// *ValidationError naming all missing fields, not only the first.
func Validate(t Type, fs FieldSet) error {
	var missing []string
	for _, name := range requiredFields[t] {
		if fs.Empty(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Type: t, Missing: missing}
	}
	return nil
}
