package designer

import (
	"fmt"

	"go-erp/internal/common/errs"
	"go-erp/internal/features/component"
)

type OpKind string

const (
	OpAdd       OpKind = "add"
	OpRemove    OpKind = "remove"
	OpDuplicate OpKind = "duplicate"
	OpReorder   OpKind = "reorder"
	OpSelect    OpKind = "select"
	OpUpdate    OpKind = "update"
)

// Operation is one editing step as posted by the designer UI.
type Operation struct {
	Op       OpKind            `json:"op"`
	ID       string            `json:"id,omitempty"`
	Type     component.Type    `json:"type,omitempty"`
	Name     string            `json:"name,omitempty"`
	Config   *component.Config `json:"config,omitempty"`
	NewIndex int               `json:"new_index,omitempty"`
}

// ApplyRequest carries the current list and the steps to apply to it.
type ApplyRequest struct {
	Components    []component.Node `json:"components"`
	Selected      string           `json:"selected,omitempty"`
	DefaultModule string           `json:"default_module,omitempty"`
	Operations    []Operation      `json:"operations"`
}

// Apply runs every operation in order against a fresh session. The batch is
// all-or-nothing: the first failing step aborts and nothing is returned.
func Apply(req ApplyRequest) (*Session, error) {
	s := NewSession(req.Components, req.DefaultModule)
	if err := component.ValidateList(s.Components, "components"); err != nil {
		return nil, err
	}
	if req.Selected != "" {
		if err := s.Select(req.Selected); err != nil {
			return nil, err
		}
	}
	for i, op := range req.Operations {
		if err := s.apply(op); err != nil {
			return nil, fmt.Errorf("operations[%d]: %w", i, err)
		}
	}
	return s, nil
}

func (s *Session) apply(op Operation) error {
	switch op.Op {
	case OpAdd:
		_, err := s.AddComponent(op.Type, op.Name, op.Config)
		return err
	case OpRemove:
		return s.RemoveComponent(op.ID)
	case OpDuplicate:
		_, err := s.DuplicateComponent(op.ID)
		return err
	case OpReorder:
		return s.Reorder(op.ID, op.NewIndex)
	case OpSelect:
		return s.Select(op.ID)
	case OpUpdate:
		if op.Config == nil {
			return errs.Missing("config")
		}
		return s.UpdateComponent(op.ID, op.Name, *op.Config)
	}
	return errs.Validation("op", "unknown operation %q", op.Op)
}
