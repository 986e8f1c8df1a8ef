package item

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFieldSet(t Type) FieldSet {
	fs := FieldSet{
		FieldSummary:     "Login com Google",
		FieldDescription: "Permitir login social",
	}
	for _, name := range RequiredFields(t) {
		fs.SetIfEmpty(name, "PROJ-1")
	}
	return fs
}

func TestValidate_RemovingEachRequiredField(t *testing.T) {
	for _, typ := range Types {
		for _, field := range RequiredFields(typ) {
			t.Run(string(typ)+"/"+field, func(t *testing.T) {
				fs := validFieldSet(typ)
				require.NoError(t, Validate(typ, fs))

				delete(fs, field)
				err := Validate(typ, fs)

				var verr *ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, typ, verr.Type)
				assert.Equal(t, []string{field}, verr.Missing)
			})
		}
	}
}

func TestValidate_ReportsEveryMissingField(t *testing.T) {
	err := Validate(TypeSubtask, FieldSet{FieldSummary: "   "})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{FieldSummary, FieldDescription, FieldParentKey}, verr.Missing)
	assert.Contains(t, err.Error(), "summary, description, parent_key")
}

func TestNew(t *testing.T) {
	t.Run("story decodes lists and narrative", func(t *testing.T) {
		fs := validFieldSet(TypeStory)
		fs.Set(FieldAsA, "cliente")
		fs.Set(FieldIWant, "pagar com pix")
		fs.Set(FieldPreconditions, "• Conta ativa\n\n- Saldo disponível")
		fs.SetList(FieldLabels, []string{"pagamento"})

		it, err := New(TypeStory, fs)
		require.NoError(t, err)

		story, ok := it.(*Story)
		require.True(t, ok)
		assert.Equal(t, "cliente", story.AsA)
		assert.Equal(t, []string{"• Conta ativa", "- Saldo disponível"}, story.Preconditions)
		assert.Equal(t, []string{"pagamento"}, story.Common().Labels)
	})

	t.Run("task falls back to parent key for story link", func(t *testing.T) {
		fs := validFieldSet(TypeTask)
		fs.Set(FieldParentKey, "PROJ-7")

		it, err := New(TypeTask, fs)
		require.NoError(t, err)
		assert.Equal(t, "PROJ-7", ParentRef(it))
	})

	t.Run("subtask without parent fails", func(t *testing.T) {
		_, err := New(TypeSubtask, FieldSet{FieldSummary: "a", FieldDescription: "b"})

		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, []string{FieldParentKey}, verr.Missing)
	})

	t.Run("sentinel types are rejected", func(t *testing.T) {
		_, err := New(TypeAuto, validFieldSet(TypeStory))
		assert.Error(t, err)
	})

	t.Run("every variant reports its type", func(t *testing.T) {
		for _, typ := range Types {
			it, err := New(typ, validFieldSet(typ))
			require.NoError(t, err)
			assert.Equal(t, typ, it.Type())
			assert.Equal(t, "Login com Google", it.Fields().Get(FieldSummary))
		}
	})
}

func TestBug_FieldsOmitEmpty(t *testing.T) {
	b := &Bug{Base: Base{Summary: "s", Description: "d"}, Impact: "alto"}
	fs := b.Fields()

	assert.Equal(t, []string{FieldDescription, FieldImpact, FieldSummary}, fs.Names())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want Type
		ok   bool
	}{
		{"Epic", TypeEpic, true},
		{" história ", TypeStory, true},
		{"tarefa", TypeTask, true},
		{"Sub-Task", TypeSubtask, true},
		{"defeito", TypeBug, true},
		{"sub-bug", TypeSubBug, true},
		{"feature", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Normalize(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestType_Hierarchy(t *testing.T) {
	assert.Equal(t, 0, TypeEpic.Depth())
	assert.Equal(t, 3, TypeSubtask.Depth())
	assert.Equal(t, 1, TypeSubBug.Depth())
	assert.Equal(t, "Sub-task", TypeSubBug.IssueType())
	assert.Equal(t, "subtasks", TypeSubBug.StoragePrefix())

	parent, ok := TypeTask.ParentType()
	assert.True(t, ok)
	assert.Equal(t, TypeStory, parent)

	_, ok = TypeBug.ParentType()
	assert.False(t, ok)
}

func TestFromJSON(t *testing.T) {
	fs := FromJSON(map[string]any{
		"summary":  "x",
		"labels":   []any{"a", nil, 3.0},
		"assignee": nil,
		"priority": 2.0,
	})

	assert.Equal(t, []string{"a", "3"}, fs.List(FieldLabels))
	assert.False(t, fs.Has(FieldAssignee))
	assert.Equal(t, "2", fs.Get(FieldPriority))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "Título", FirstLine("\n  \n  Título  \nresto"))
	assert.Equal(t, "", FirstLine("   "))
}
