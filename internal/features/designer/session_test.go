package designer

import (
	"testing"

	"go-erp/internal/common/errs"
	"go-erp/internal/features/component"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textNode(id string, order int) component.Node {
	return component.Node{ID: id, Type: component.TypeText, Name: id, OrderIndex: order, Config: component.Config{Content: id}}
}

func ids(s *Session) []string {
	out := make([]string, len(s.Components))
	for i, n := range s.Components {
		out[i] = n.ID
	}
	return out
}

func assertContiguous(t *testing.T, s *Session) {
	t.Helper()
	for i, n := range s.Components {
		assert.Equal(t, i, n.OrderIndex, "node %s", n.ID)
	}
}

func TestAddComponent(t *testing.T) {
	s := NewSession(nil, "orders")

	table, err := s.AddComponent(component.TypeTable, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, table.OrderIndex)
	assert.Equal(t, "orders", table.Config.DataSource.Module)
	assert.NotEmpty(t, table.ID)

	text, err := s.AddComponent(component.TypeText, "Intro", &component.Config{Content: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, 1, text.OrderIndex)
	assert.NotEqual(t, table.ID, text.ID)

	_, err = s.AddComponent(component.TypeText, "", &component.Config{})
	var verr *errs.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "component.config.content", verr.Field)
	assert.Len(t, s.Components, 2)
}

func TestAddDataBoundWithoutDefaultModule(t *testing.T) {
	s := NewSession(nil, "")
	_, err := s.AddComponent(component.TypeChartBar, "", nil)
	assert.True(t, errs.IsValidation(err))
	assert.Empty(t, s.Components)
}

func TestRemoveComponent(t *testing.T) {
	s := NewSession([]component.Node{textNode("a", 0), textNode("b", 1), textNode("c", 2)}, "")
	require.NoError(t, s.Select("b"))

	require.NoError(t, s.RemoveComponent("b"))
	assert.Equal(t, []string{"a", "c"}, ids(s))
	assertContiguous(t, s)
	assert.Empty(t, s.Selected)

	assert.True(t, errs.IsNotFound(s.RemoveComponent("missing")))
}

func TestRemoveKeepsOtherSelection(t *testing.T) {
	s := NewSession([]component.Node{textNode("a", 0), textNode("b", 1)}, "")
	require.NoError(t, s.Select("a"))
	require.NoError(t, s.RemoveComponent("b"))
	assert.Equal(t, "a", s.Selected)
}

func TestDuplicateComponent(t *testing.T) {
	s := NewSession([]component.Node{textNode("a", 0), textNode("b", 1), textNode("c", 2)}, "")

	dup, err := s.DuplicateComponent("a")
	require.NoError(t, err)
	assert.Equal(t, "a (copy)", dup.Name)
	assert.Equal(t, 1, dup.OrderIndex)
	assert.NotEqual(t, "a", dup.ID)
	assert.Equal(t, []string{"a", dup.ID, "b", "c"}, ids(s))
	assertContiguous(t, s)

	s.Components[1].Config.Content = "changed"
	assert.Equal(t, "a", s.Components[0].Config.Content)
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		newIndex int
		want     []string
	}{
		{"forward", "a", 2, []string{"b", "c", "a", "d"}},
		{"backward", "d", 1, []string{"a", "d", "b", "c"}},
		{"to end", "b", 3, []string{"a", "c", "d", "b"}},
		{"no-op", "c", 2, []string{"a", "b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession([]component.Node{textNode("a", 0), textNode("b", 1), textNode("c", 2), textNode("d", 3)}, "")
			require.NoError(t, s.Reorder(tt.id, tt.newIndex))
			assert.Equal(t, tt.want, ids(s))
			assertContiguous(t, s)
		})
	}

	s := NewSession([]component.Node{textNode("a", 0)}, "")
	assert.True(t, errs.IsValidation(s.Reorder("a", 5)))
}

func TestSelect(t *testing.T) {
	s := NewSession([]component.Node{textNode("a", 0)}, "")
	require.NoError(t, s.Select("a"))
	n, ok := s.SelectedComponent()
	require.True(t, ok)
	assert.Equal(t, "a", n.ID)

	assert.True(t, errs.IsNotFound(s.Select("zzz")))
	require.NoError(t, s.Select(""))
	_, ok = s.SelectedComponent()
	assert.False(t, ok)
}

func TestNewSessionDoesNotAliasInput(t *testing.T) {
	src := []component.Node{textNode("a", 0)}
	s := NewSession(src, "")
	s.Components[0].Name = "changed"
	assert.Equal(t, "a", src[0].Name)
}

func TestApply(t *testing.T) {
	req := ApplyRequest{
		Components:    []component.Node{textNode("a", 0), textNode("b", 1)},
		DefaultModule: "orders",
		Operations: []Operation{
			{Op: OpAdd, Type: component.TypeKPI},
			{Op: OpReorder, ID: "b", NewIndex: 0},
			{Op: OpRemove, ID: "a"},
			{Op: OpUpdate, ID: "b", Config: &component.Config{Content: "updated"}},
			{Op: OpSelect, ID: "b"},
		},
	}
	s, err := Apply(req)
	require.NoError(t, err)
	require.Len(t, s.Components, 2)
	assert.Equal(t, "b", s.Components[0].ID)
	assert.Equal(t, "updated", s.Components[0].Config.Content)
	assert.Equal(t, component.TypeKPI, s.Components[1].Type)
	assert.Equal(t, "b", s.Selected)
	assertContiguous(t, s)
}

func TestApplyAbortsOnFirstError(t *testing.T) {
	req := ApplyRequest{
		Components: []component.Node{textNode("a", 0)},
		Operations: []Operation{
			{Op: OpRemove, ID: "a"},
			{Op: OpDuplicate, ID: "a"},
		},
	}
	_, err := Apply(req)
	assert.True(t, errs.IsNotFound(err))

	_, err = Apply(ApplyRequest{Operations: []Operation{{Op: "explode"}}})
	assert.True(t, errs.IsValidation(err))
}

func TestApplyRejectsInvalidInputList(t *testing.T) {
	_, err := Apply(ApplyRequest{Components: []component.Node{textNode("a", 0), textNode("a", 1)}})
	assert.True(t, errs.IsValidation(err))
}
