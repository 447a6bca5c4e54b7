package dto

import "time"

// CreateWorkspaceRequest payload for creating an access scope.
type CreateWorkspaceRequest struct {
	Name      string  `json:"name" validate:"required"`
	Slug      string  `json:"slug" validate:"omitempty"`
	Type      string  `json:"type" validate:"required,oneof=group board committee organization"`
	ParentID  *string `json:"parentId" validate:"omitempty"`
	Published bool    `json:"published"`
}

// GrantWorkspaceAccessRequest payload for adding a member to a workspace.
type GrantWorkspaceAccessRequest struct {
	WorkspaceID string     `json:"workspaceId" validate:"required"`
	UserID      string     `json:"userId" validate:"required"`
	Role        string     `json:"role" validate:"omitempty,oneof=viewer member admin"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}
