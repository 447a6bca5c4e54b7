package models

import "time"

// WorkspaceType classifies an access scope in the hierarchy.
type WorkspaceType string

const (
	WorkspaceGroup        WorkspaceType = "group"
	WorkspaceBoard        WorkspaceType = "board"
	WorkspaceCommittee    WorkspaceType = "committee"
	WorkspaceOrganization WorkspaceType = "organization"
)

// Valid reports whether the type is a known scope kind.
func (t WorkspaceType) Valid() bool {
	switch t {
	case WorkspaceGroup, WorkspaceBoard, WorkspaceCommittee, WorkspaceOrganization:
		return true
	}
	return false
}

// Workspace is a named hierarchical access-control scope. ParentID forms
// a tree; creation rejects links that would introduce a cycle.
type Workspace struct {
	ID        string        `db:"id" json:"id"`
	Name      string        `db:"name" json:"name"`
	Slug      string        `db:"slug" json:"slug"`
	Type      WorkspaceType `db:"type" json:"type"`
	ParentID  *string       `db:"parent_id" json:"parent_id,omitempty"`
	Published bool          `db:"published" json:"published"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	DeletedAt *time.Time    `db:"deleted_at" json:"deleted_at,omitempty"`
}

// WorkspaceAccess records a user's membership in a workspace.
type WorkspaceAccess struct {
	ID          string     `db:"id" json:"id"`
	WorkspaceID string     `db:"workspace_id" json:"workspace_id"`
	UserID      string     `db:"user_id" json:"user_id"`
	Role        string     `db:"role" json:"role"`
	GrantedBy   *string    `db:"granted_by" json:"granted_by,omitempty"`
	ExpiresAt   *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Workspace access roles.
const (
	WorkspaceRoleViewer = "viewer"
	WorkspaceRoleMember = "member"
	WorkspaceRoleAdmin  = "admin"
)
