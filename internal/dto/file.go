package dto

// UploadFileRequest is the multipart form metadata accompanying an upload.
type UploadFileRequest struct {
	FolderPath      string  `form:"folderPath" json:"folderPath"`
	WorkspaceID     *string `form:"workspaceId" json:"workspaceId"`
	IsPublic        bool    `form:"isPublic" json:"isPublic"`
	EntityType      *string `form:"entityType" json:"entityType"`
	Category        *string `form:"category" json:"category"`
	Note            *string `form:"note" json:"note"`
	DuplicateAction string  `form:"duplicateAction" json:"duplicateAction" validate:"omitempty,oneof=skip replace link keep_both warn"`
}

// SetVisibilityRequest flips the public flag on a file.
type SetVisibilityRequest struct {
	IsPublic bool `json:"isPublic"`
}

// DeleteFileRequest selects between soft and hard deletion.
type DeleteFileRequest struct {
	Hard bool `form:"hard" json:"hard"`
}
