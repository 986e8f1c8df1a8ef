// Package item defines work item types, the field sets extracted for them and
// the typed item variants rendered into the tracker.
package item

import "strings"

// Type identifies a work item category.
type Type string

// Item types in declaration order. Unknown and Auto are classifier outcomes,
// never created in the tracker.
const (
	TypeEpic    Type = "épico"
	TypeStory   Type = "história"
	TypeTask    Type = "task"
	TypeSubtask Type = "subtask"
	TypeBug     Type = "bug"
	TypeSubBug  Type = "sub-bug"

	TypeUnknown Type = "unknown"
	// TypeAuto requests a full generated hierarchy.
	TypeAuto Type = "auto"
)

// Types lists the creatable item types in declaration order.
var Types = []Type{TypeEpic, TypeStory, TypeTask, TypeSubtask, TypeBug, TypeSubBug}

// Valid reports whether t is a creatable item type.
func (t Type) Valid() bool {
	switch t {
	case TypeEpic, TypeStory, TypeTask, TypeSubtask, TypeBug, TypeSubBug:
		return true
	}
	return false
}

func (t Type) String() string { return string(t) }

// IssueType returns the tracker issue type name. Sub-bugs are created as sub-tasks.
func (t Type) IssueType() string {
	switch t {
	case TypeEpic:
		return "Epic"
	case TypeStory:
		return "Story"
	case TypeTask:
		return "Task"
	case TypeSubtask, TypeSubBug:
		return "Sub-task"
	case TypeBug:
		return "Bug"
	}
	return ""
}

// StoragePrefix returns the blob store partition segment for the type.
func (t Type) StoragePrefix() string {
	switch t {
	case TypeEpic:
		return "epics"
	case TypeStory:
		return "stories"
	case TypeTask:
		return "tasks"
	case TypeSubtask, TypeSubBug:
		return "subtasks"
	case TypeBug:
		return "bugs"
	}
	return string(t)
}

// ParentType returns the type a node of type t hangs under in a hierarchy.
func (t Type) ParentType() (Type, bool) {
	switch t {
	case TypeStory:
		return TypeEpic, true
	case TypeTask:
		return TypeStory, true
	case TypeSubtask:
		return TypeTask, true
	case TypeSubBug:
		return TypeBug, true
	}
	return "", false
}

// Depth is the nesting level of t below its root type.
func (t Type) Depth() int {
	depth := 0
	for p, ok := t.ParentType(); ok; p, ok = p.ParentType() {
		depth++
	}
	return depth
}

// synonyms maps every accepted spelling to its canonical type.
var synonyms = map[string]Type{
	"epic":       TypeEpic,
	"épico":      TypeEpic,
	"epico":      TypeEpic,
	"story":      TypeStory,
	"história":   TypeStory,
	"historia":   TypeStory,
	"task":       TypeTask,
	"tarefa":     TypeTask,
	"subtask":    TypeSubtask,
	"sub-task":   TypeSubtask,
	"subtarefa":  TypeSubtask,
	"sub-tarefa": TypeSubtask,
	"bug":        TypeBug,
	"erro":       TypeBug,
	"defeito":    TypeBug,
	"sub-bug":    TypeSubBug,
}

// Normalize maps a free-form type name to its canonical Type. The second
// return value is false when the name is not recognized.
func Normalize(name string) (Type, bool) {
	t, ok := synonyms[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}
