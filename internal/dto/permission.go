package dto

import "time"

// PermissionBitsRequest carries one rwx triple with an optional expiry.
type PermissionBitsRequest struct {
	Read      bool       `json:"read"`
	Write     bool       `json:"write"`
	Execute   bool       `json:"execute"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// SetOwnerPermissionRequest assigns the file's owner entry.
type SetOwnerPermissionRequest struct {
	UserID string `json:"userId" validate:"required"`
	PermissionBitsRequest
}

// GrantGroupPermissionRequest grants rwx bits to a workspace group.
type GrantGroupPermissionRequest struct {
	WorkspaceID       string `json:"workspaceId" validate:"required"`
	InheritToChildren bool   `json:"inheritToChildren"`
	PermissionBitsRequest
}
