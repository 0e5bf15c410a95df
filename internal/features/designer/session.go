// Package designer holds the in-memory editing session for a report's
// component list. Nothing here is persisted; callers save the resulting
// list through the report store.
package designer

import (
	"go-erp/internal/common/errs"
	"go-erp/internal/features/component"
)

// Session is a single-owner working copy. It is not safe for concurrent use.
type Session struct {
	Components []component.Node `json:"components"`
	Selected   string           `json:"selected,omitempty"`

	// DefaultModule seeds the data source of newly added data-bound
	// components when the caller does not pass a configuration.
	DefaultModule string `json:"default_module,omitempty"`
}

// NewSession starts a session from an existing (possibly empty) list. The
// list is deep-copied and normalized.
func NewSession(nodes []component.Node, defaultModule string) *Session {
	return &Session{
		Components:    component.Normalize(component.CloneList(nodes, false)),
		DefaultModule: defaultModule,
	}
}

// AddComponent appends a component of type t. With a nil cfg the type's
// default configuration is used. The new node is returned.
func (s *Session) AddComponent(t component.Type, name string, cfg *component.Config) (component.Node, error) {
	if !t.Valid() {
		return component.Node{}, errs.Validation("type", "unknown component type %q", t)
	}
	var c component.Config
	if cfg != nil {
		c = cfg.Clone()
	} else {
		def, err := component.DefaultConfig(t, s.DefaultModule)
		if err != nil {
			return component.Node{}, err
		}
		c = def
	}
	if name == "" {
		name = component.DefaultName(t)
	}
	node := component.Node{
		ID:         component.NewID(),
		Type:       t,
		Name:       name,
		OrderIndex: len(s.Components),
		Config:     c,
	}
	if err := component.Validate(node, "component"); err != nil {
		return component.Node{}, err
	}
	s.Components = append(s.Components, node)
	return node, nil
}

// RemoveComponent deletes the node and renumbers the remainder.
func (s *Session) RemoveComponent(id string) error {
	idx := s.indexOf(id)
	if idx < 0 {
		return errs.NotFound("component", id)
	}
	s.Components = append(s.Components[:idx], s.Components[idx+1:]...)
	s.renumber()
	if s.Selected == id {
		s.Selected = ""
	}
	return nil
}

// DuplicateComponent inserts a deep copy directly after the source.
func (s *Session) DuplicateComponent(id string) (component.Node, error) {
	idx := s.indexOf(id)
	if idx < 0 {
		return component.Node{}, errs.NotFound("component", id)
	}
	dup := s.Components[idx].Clone()
	dup.ID = component.NewID()
	dup.Name += " (copy)"

	s.Components = append(s.Components, component.Node{})
	copy(s.Components[idx+2:], s.Components[idx+1:])
	s.Components[idx+1] = dup
	s.renumber()
	return s.Components[idx+1], nil
}

// Reorder moves the node to newIndex, shifting the nodes in between.
func (s *Session) Reorder(id string, newIndex int) error {
	idx := s.indexOf(id)
	if idx < 0 {
		return errs.NotFound("component", id)
	}
	if newIndex < 0 || newIndex >= len(s.Components) {
		return errs.Validation("new_index", "must be between 0 and %d", len(s.Components)-1)
	}
	if newIndex == idx {
		return nil
	}
	node := s.Components[idx]
	if newIndex > idx {
		copy(s.Components[idx:newIndex], s.Components[idx+1:newIndex+1])
	} else {
		copy(s.Components[newIndex+1:idx+1], s.Components[newIndex:idx])
	}
	s.Components[newIndex] = node
	s.renumber()
	return nil
}

// Select marks id as the node being edited. An empty id clears it.
func (s *Session) Select(id string) error {
	if id != "" && s.indexOf(id) < 0 {
		return errs.NotFound("component", id)
	}
	s.Selected = id
	return nil
}

// SelectedComponent returns the selected node, if any.
func (s *Session) SelectedComponent() (component.Node, bool) {
	idx := s.indexOf(s.Selected)
	if s.Selected == "" || idx < 0 {
		return component.Node{}, false
	}
	return s.Components[idx], true
}

// UpdateComponent replaces name and config of an existing node after
// validating the new configuration.
func (s *Session) UpdateComponent(id, name string, cfg component.Config) error {
	idx := s.indexOf(id)
	if idx < 0 {
		return errs.NotFound("component", id)
	}
	next := s.Components[idx]
	if name != "" {
		next.Name = name
	}
	next.Config = cfg.Clone()
	if err := component.Validate(next, "component"); err != nil {
		return err
	}
	s.Components[idx] = next
	return nil
}

func (s *Session) indexOf(id string) int {
	for i := range s.Components {
		if s.Components[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) renumber() {
	for i := range s.Components {
		s.Components[i].OrderIndex = i
	}
}
