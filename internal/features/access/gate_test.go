package access

import (
	"testing"

	"go-erp/internal/common/errs"

	"github.com/stretchr/testify/assert"
)

func TestAuthorizeReport(t *testing.T) {
	gate := NewGate("admin")
	perms := PermissionSet{ViewUsers: []string{"viewer"}, EditUsers: []string{"editor"}}

	tests := []struct {
		name    string
		id      Identity
		perms   PermissionSet
		action  Action
		allowed bool
	}{
		{"owner may delete", Identity{UserID: "owner"}, perms, ActionDelete, true},
		{"editor may not delete", Identity{UserID: "editor"}, perms, ActionDelete, false},
		{"editor may edit", Identity{UserID: "editor"}, perms, ActionEdit, true},
		{"editor may view", Identity{UserID: "editor"}, perms, ActionView, true},
		{"editor may not share", Identity{UserID: "editor"}, perms, ActionShare, false},
		{"owner may share", Identity{UserID: "owner"}, perms, ActionShare, true},
		{"editor may trigger", Identity{UserID: "editor"}, perms, ActionTrigger, true},
		{"viewer may view", Identity{UserID: "viewer"}, perms, ActionView, true},
		{"viewer may export", Identity{UserID: "viewer"}, perms, ActionExport, true},
		{"viewer may not edit", Identity{UserID: "viewer"}, perms, ActionEdit, false},
		{"viewer may not trigger", Identity{UserID: "viewer"}, perms, ActionTrigger, false},
		{"stranger denied", Identity{UserID: "x"}, perms, ActionView, false},
		{"public visible to stranger", Identity{UserID: "x"}, PermissionSet{IsPublic: true}, ActionView, true},
		{"public not editable by stranger", Identity{UserID: "x"}, PermissionSet{IsPublic: true}, ActionEdit, false},
		{"admin may delete", Identity{UserID: "root", Roles: []string{"Admin"}}, perms, ActionDelete, true},
		{"anonymous denied", Identity{}, PermissionSet{IsPublic: true}, ActionView, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.AuthorizeReport(tt.id, "owner", tt.perms, tt.action)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.True(t, errs.IsPermission(err))
			}
		})
	}
}

func TestAuthorizeTemplate(t *testing.T) {
	gate := NewGate("")
	user := Identity{UserID: "u1"}
	admin := Identity{UserID: "a", Roles: []string{"admin"}}

	assert.NoError(t, gate.AuthorizeTemplate(user, "", false, true, ActionView))
	assert.Error(t, gate.AuthorizeTemplate(user, "", false, true, ActionEdit))
	assert.NoError(t, gate.AuthorizeTemplate(admin, "", false, true, ActionDelete))
	assert.NoError(t, gate.AuthorizeTemplate(user, "u1", false, false, ActionEdit))
	assert.Error(t, gate.AuthorizeTemplate(user, "u2", false, false, ActionView))
	assert.NoError(t, gate.AuthorizeTemplate(user, "u2", true, false, ActionView))
}

func TestPermissionSetNormalize(t *testing.T) {
	p := PermissionSet{ViewUsers: []string{" a", "a", "", "b"}, EditUsers: nil}.Normalize()
	assert.Equal(t, []string{"a", "b"}, p.ViewUsers)
	assert.Equal(t, []string{}, p.EditUsers)
}
