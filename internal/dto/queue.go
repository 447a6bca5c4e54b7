package dto

// EnqueueSyncRequest schedules one tier migration.
type EnqueueSyncRequest struct {
	FileID    string  `json:"fileId" validate:"required"`
	VersionID string  `json:"versionId" validate:"required"`
	Operation string  `json:"operation" validate:"required,oneof=upload delete sync verify"`
	FromTier  *string `json:"fromTier" validate:"omitempty,oneof=cdn cloud cache backup"`
	ToTier    string  `json:"toTier" validate:"required,oneof=cdn cloud cache backup"`
	Priority  int     `json:"priority" validate:"omitempty,min=0,max=10"`
	Reason    string  `json:"reason"`
}
