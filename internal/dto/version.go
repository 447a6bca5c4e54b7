package dto

// CreateVersionRequest is the metadata accompanying a replacement upload.
type CreateVersionRequest struct {
	Note *string `form:"note" json:"note"`
}

// RevertVersionRequest targets a historical version number.
type RevertVersionRequest struct {
	Number int     `json:"number" validate:"required,min=1"`
	Note   *string `json:"note"`
}

// PruneVersionsRequest bounds how many recent versions survive a prune.
type PruneVersionsRequest struct {
	Keep int `json:"keep" validate:"required,min=1"`
}
