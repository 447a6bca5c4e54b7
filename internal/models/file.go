package models

import "time"

// File is the logical document whose bytes live across storage tiers.
// The physical placements are tracked separately as Locations.
type File struct {
	ID               string          `db:"id" json:"id"`
	Filename         string          `db:"filename" json:"filename"`
	OriginalFilename string          `db:"original_filename" json:"original_filename"`
	MimeType         string          `db:"mime_type" json:"mime_type"`
	Size             int64           `db:"size" json:"size"`
	ChecksumMD5      string          `db:"checksum_md5" json:"checksum_md5"`
	ChecksumSHA256   string          `db:"checksum_sha256" json:"checksum_sha256"`
	FolderPath       string          `db:"folder_path" json:"folder_path"`
	WorkspaceID      *string         `db:"workspace_id" json:"workspace_id,omitempty"`
	IsPublic         bool            `db:"is_public" json:"is_public"`
	CurrentVersionID *string         `db:"current_version_id" json:"current_version_id,omitempty"`
	Protection       ProtectionLevel `db:"protection" json:"protection"`
	OverrideCap      *string         `db:"override_capability" json:"override_capability,omitempty"`
	EntityType       *string         `db:"entity_type" json:"entity_type,omitempty"`
	Category         *string         `db:"category" json:"category,omitempty"`
	CreatedBy        string          `db:"created_by" json:"created_by"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
	DeletedAt        *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Deleted reports whether the file has been soft-deleted.
func (f *File) Deleted() bool {
	return f != nil && f.DeletedAt != nil
}
