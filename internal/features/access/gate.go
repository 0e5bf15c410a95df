// Package access is the permission gate for reports and templates.
//
// The gate only consumes a resolved Identity; how that identity was
// authenticated is decided elsewhere (see middleware.CurrentIdentity).
package access

import (
	"slices"
	"strings"

	"go-erp/internal/common/errs"
)

type Action string

const (
	ActionView    Action = "view"
	ActionEdit    Action = "edit"
	ActionTrigger Action = "trigger"
	ActionExport  Action = "export"
	ActionDelete  Action = "delete"
	// ActionShare changes who else may see or edit a report.
	ActionShare Action = "share"
)

// SystemUserID is the identity used for unattended (scheduled) work.
const SystemUserID = "system"

// Identity is the caller as resolved by the authentication layer.
type Identity struct {
	UserID   string   `json:"user_id"`
	TenantID string   `json:"tenant_id,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// PermissionSet controls who besides the owner may see or change a report.
// Membership in EditUsers implies view access.
type PermissionSet struct {
	IsPublic  bool     `json:"is_public" bson:"is_public"`
	ViewUsers []string `json:"view_users" bson:"view_users"`
	EditUsers []string `json:"edit_users" bson:"edit_users"`
}

// Normalize trims, de-duplicates and drops empty user ids.
func (p PermissionSet) Normalize() PermissionSet {
	return PermissionSet{
		IsPublic:  p.IsPublic,
		ViewUsers: uniqueIDs(p.ViewUsers),
		EditUsers: uniqueIDs(p.EditUsers),
	}
}

func (p PermissionSet) CanView(userID string) bool {
	return p.IsPublic || slices.Contains(p.ViewUsers, userID) || slices.Contains(p.EditUsers, userID)
}

func (p PermissionSet) CanEdit(userID string) bool {
	return slices.Contains(p.EditUsers, userID)
}

type Gate struct {
	adminRole string
}

func NewGate(adminRole string) *Gate {
	if adminRole == "" {
		adminRole = "admin"
	}
	return &Gate{adminRole: adminRole}
}

// IsAdmin reports whether id holds the administrative role.
func (g *Gate) IsAdmin(id Identity) bool {
	for _, role := range id.Roles {
		if strings.EqualFold(role, g.adminRole) {
			return true
		}
	}
	return false
}

// AuthorizeReport checks action against a report owned by owner with perms.
func (g *Gate) AuthorizeReport(id Identity, owner string, perms PermissionSet, action Action) error {
	if g.IsAdmin(id) {
		return nil
	}
	if id.UserID == "" {
		return errs.Permission(string(action), "report")
	}
	isOwner := owner != "" && owner == id.UserID

	switch action {
	case ActionView, ActionExport:
		if isOwner || perms.CanView(id.UserID) {
			return nil
		}
	case ActionEdit, ActionTrigger:
		if isOwner || perms.CanEdit(id.UserID) {
			return nil
		}
	case ActionDelete, ActionShare:
		if isOwner {
			return nil
		}
	}
	return errs.Permission(string(action), "report")
}

// AuthorizeTemplate applies the template rules: system templates are
// readable by everyone but only administrators may change them.
func (g *Gate) AuthorizeTemplate(id Identity, owner string, isPublic, isSystem bool, action Action) error {
	if g.IsAdmin(id) {
		return nil
	}
	isOwner := owner != "" && owner == id.UserID

	switch action {
	case ActionView:
		if isPublic || isSystem || isOwner {
			return nil
		}
	case ActionEdit, ActionDelete:
		if !isSystem && isOwner {
			return nil
		}
	}
	return errs.Permission(string(action), "template")
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
