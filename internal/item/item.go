package item

import (
	"fmt"
	"strings"
	"time"
)

// Base holds the fields shared by every item variant.
type Base struct {
	Summary     string
	Description string
	Labels      []string
	Assignee    string
	Priority    string
}

// Item is a typed work item. The concrete variants are Epic, Story, Task,
// Subtask, Bug and SubBug; the set is closed.
type Item interface {
	Type() Type
	Common() *Base
	// Fields flattens the item back into a FieldSet. Empty optional fields
	// are omitted.
	Fields() FieldSet
	isItem()
}

// Epic groups stories under a strategic objective.
type Epic struct {
	Base
	EpicName           string
	Objective          string
	Benefits           []string
	AcceptanceCriteria []string
	Risks              []string
}

// Story is a user-facing unit of value.
type Story struct {
	Base
	EpicLink           string
	AsA                string
	IWant              string
	SoThat             string
	Preconditions      []string
	Rules              []string
	Exceptions         []string
	AcceptanceCriteria []string
	TestScenarios      string
}

// Task is technical work under a story.
type Task struct {
	Base
	StoryLink          string
	AcceptanceCriteria []string
}

// Subtask is a step of a task.
type Subtask struct {
	Base
	ParentKey          string
	AcceptanceCriteria []string
}

// Bug describes a defect. ParentKey is optional.
type Bug struct {
	Base
	ParentKey        string
	ErrorScenario    string
	ExpectedScenario string
	Impact           string
	Origin           string
	Solution         string
	StepsToReproduce []string
	Severity         string
}

// SubBug is a defect found while working on a bug.
type SubBug struct {
	Base
	ParentKey          string
	ErrorScenario      string
	ExpectedScenario   string
	AcceptanceCriteria []string
}

func (*Epic) Type() Type    { return TypeEpic }
func (*Story) Type() Type   { return TypeStory }
func (*Task) Type() Type    { return TypeTask }
func (*Subtask) Type() Type { return TypeSubtask }
func (*Bug) Type() Type     { return TypeBug }
func (*SubBug) Type() Type  { return TypeSubBug }

func (e *Epic) Common() *Base    { return &e.Base }
func (s *Story) Common() *Base   { return &s.Base }
func (t *Task) Common() *Base    { return &t.Base }
func (s *Subtask) Common() *Base { return &s.Base }
func (b *Bug) Common() *Base     { return &b.Base }
func (s *SubBug) Common() *Base  { return &s.Base }

func (*Epic) isItem()    {}
func (*Story) isItem()   {}
func (*Task) isItem()    {}
func (*Subtask) isItem() {}
func (*Bug) isItem()     {}
func (*SubBug) isItem()  {}

var (
	_ Item = (*Epic)(nil)
	_ Item = (*Story)(nil)
	_ Item = (*Task)(nil)
	_ Item = (*Subtask)(nil)
	_ Item = (*Bug)(nil)
	_ Item = (*SubBug)(nil)
)

// New decodes fs into the variant for t. It validates required fields first,
// so a returned item is always complete enough to render.
func New(t Type, fs FieldSet) (Item, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("cannot build item of type %q", t)
	}
	if err := Validate(t, fs); err != nil {
		return nil, err
	}
	base := Base{
		Summary:     strings.TrimSpace(fs.Get(FieldSummary)),
		Description: fs.Get(FieldDescription),
		Labels:      fs.List(FieldLabels),
		Assignee:    fs.Get(FieldAssignee),
		Priority:    fs.Get(FieldPriority),
	}
	switch t {
	case TypeEpic:
		return &Epic{
			Base:               base,
			EpicName:           fs.Get(FieldEpicName),
			Objective:          fs.Get(FieldObjective),
			Benefits:           fs.List(FieldBenefits),
			AcceptanceCriteria: fs.List(FieldAcceptanceCriteria),
			Risks:              fs.List(FieldRisks),
		}, nil
	case TypeStory:
		return &Story{
			Base:               base,
			EpicLink:           fs.Get(FieldEpicLink),
			AsA:                fs.Get(FieldAsA),
			IWant:              fs.Get(FieldIWant),
			SoThat:             fs.Get(FieldSoThat),
			Preconditions:      fs.List(FieldPreconditions),
			Rules:              fs.List(FieldRules),
			Exceptions:         fs.List(FieldExceptions),
			AcceptanceCriteria: fs.List(FieldAcceptanceCriteria),
			TestScenarios:      fs.Get(FieldTestScenarios),
		}, nil
	case TypeTask:
		link := fs.Get(FieldStoryLink)
		if link == "" {
			link = fs.Get(FieldParentKey)
		}
		return &Task{
			Base:               base,
			StoryLink:          link,
			AcceptanceCriteria: fs.List(FieldAcceptanceCriteria),
		}, nil
	case TypeSubtask:
		return &Subtask{
			Base:               base,
			ParentKey:          fs.Get(FieldParentKey),
			AcceptanceCriteria: fs.List(FieldAcceptanceCriteria),
		}, nil
	case TypeBug:
		return &Bug{
			Base:             base,
			ParentKey:        fs.Get(FieldParentKey),
			ErrorScenario:    fs.Get(FieldErrorScenario),
			ExpectedScenario: fs.Get(FieldExpectedScenario),
			Impact:           fs.Get(FieldImpact),
			Origin:           fs.Get(FieldOrigin),
			Solution:         fs.Get(FieldSolution),
			StepsToReproduce: fs.List(FieldStepsToReproduce),
			Severity:         fs.Get(FieldSeverity),
		}, nil
	default: // TypeSubBug
		return &SubBug{
			Base:               base,
			ParentKey:          fs.Get(FieldParentKey),
			ErrorScenario:      fs.Get(FieldErrorScenario),
			ExpectedScenario:   fs.Get(FieldExpectedScenario),
			AcceptanceCriteria: fs.List(FieldAcceptanceCriteria),
		}, nil
	}
}

// ParentRef returns the tracker key the item declares as its parent, if any.
func ParentRef(it Item) string {
	switch v := it.(type) {
	case *Story:
		return v.EpicLink
	case *Task:
		return v.StoryLink
	case *Subtask:
		return v.ParentKey
	case *Bug:
		return v.ParentKey
	case *SubBug:
		return v.ParentKey
	}
	return ""
}

func (b *Base) fields() FieldSet {
	fs := FieldSet{FieldSummary: b.Summary, FieldDescription: b.Description}
	if len(b.Labels) > 0 {
		fs.SetList(FieldLabels, b.Labels)
	}
	setString(fs, FieldAssignee, b.Assignee)
	setString(fs, FieldPriority, b.Priority)
	return fs
}

func (e *Epic) Fields() FieldSet {
	fs := e.Base.fields()
	setString(fs, FieldEpicName, e.EpicName)
	setString(fs, FieldObjective, e.Objective)
	setList(fs, FieldBenefits, e.Benefits)
	setList(fs, FieldAcceptanceCriteria, e.AcceptanceCriteria)
	setList(fs, FieldRisks, e.Risks)
	return fs
}

func (s *Story) Fields() FieldSet {
	fs := s.Base.fields()
	setString(fs, FieldEpicLink, s.EpicLink)
	setString(fs, FieldAsA, s.AsA)
	setString(fs, FieldIWant, s.IWant)
	setString(fs, FieldSoThat, s.SoThat)
	setList(fs, FieldPreconditions, s.Preconditions)
	setList(fs, FieldRules, s.Rules)
	setList(fs, FieldExceptions, s.Exceptions)
	setList(fs, FieldAcceptanceCriteria, s.AcceptanceCriteria)
	setString(fs, FieldTestScenarios, s.TestScenarios)
	return fs
}

func (t *Task) Fields() FieldSet {
	fs := t.Base.fields()
	setString(fs, FieldStoryLink, t.StoryLink)
	setList(fs, FieldAcceptanceCriteria, t.AcceptanceCriteria)
	return fs
}

func (s *Subtask) Fields() FieldSet {
	fs := s.Base.fields()
	setString(fs, FieldParentKey, s.ParentKey)
	setList(fs, FieldAcceptanceCriteria, s.AcceptanceCriteria)
	return fs
}

func (b *Bug) Fields() FieldSet {
	fs := b.Base.fields()
	setString(fs, FieldParentKey, b.ParentKey)
	setString(fs, FieldErrorScenario, b.ErrorScenario)
	setString(fs, FieldExpectedScenario, b.ExpectedScenario)
	setString(fs, FieldImpact, b.Impact)
	setString(fs, FieldOrigin, b.Origin)
	setString(fs, FieldSolution, b.Solution)
	setList(fs, FieldStepsToReproduce, b.StepsToReproduce)
	setString(fs, FieldSeverity, b.Severity)
	return fs
}

func (s *SubBug) Fields() FieldSet {
	fs := s.Base.fields()
	setString(fs, FieldParentKey, s.ParentKey)
	setString(fs, FieldErrorScenario, s.ErrorScenario)
	setString(fs, FieldExpectedScenario, s.ExpectedScenario)
	setList(fs, FieldAcceptanceCriteria, s.AcceptanceCriteria)
	return fs
}

func setString(fs FieldSet, name, v string) {
	if v != "" {
		fs[name] = v
	}
}

func setList(fs FieldSet, name string, v []string) {
	if len(v) > 0 {
		fs[name] = append([]string(nil), v...)
	}
}

// PromptRecord captures one incoming request for the duration of a run.
type PromptRecord struct {
	Raw        string    `json:"raw"`
	Normalized string    `json:"normalized"`
	Timestamp  time.Time `json:"timestamp"`
	// Type is the routed type: the classifier's answer, refined by the
	// resolver, or TypeAuto when a hierarchy was requested.
	Type Type `json:"type"`
	// Classified is the classifier's own answer before routing.
	Classified         Type `json:"classified"`
	HierarchyRequested bool `json:"hierarchy_requested"`
}

// FirstLine returns the first non-empty line of the raw prompt, trimmed.
func (p *PromptRecord) FirstLine() string {
	return FirstLine(p.Raw)
}

// FirstLine returns the first non-empty line of text, trimmed.
func FirstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
