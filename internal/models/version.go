package models

import "time"

// Version is one immutable revision of a File's content. Exactly one
// version per file carries IsCurrent=true, mirrored by the file's
// current-version pointer.
type Version struct {
	ID             string    `db:"id" json:"id"`
	FileID         string    `db:"file_id" json:"file_id"`
	Number         int       `db:"number" json:"number"`
	Size           int64     `db:"size" json:"size"`
	ChecksumMD5    string    `db:"checksum_md5" json:"checksum_md5"`
	ChecksumSHA256 string    `db:"checksum_sha256" json:"checksum_sha256"`
	Note           *string   `db:"note" json:"note,omitempty"`
	UploadedBy     string    `db:"uploaded_by" json:"uploaded_by"`
	IsCurrent      bool      `db:"is_current" json:"is_current"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// VersionComparison is the read-only diff between two versions of a file.
type VersionComparison struct {
	FileID        string        `json:"file_id"`
	NumberA       int           `json:"number_a"`
	NumberB       int           `json:"number_b"`
	SizeDelta     int64         `json:"size_delta"`
	TimeDelta     time.Duration `json:"time_delta"`
	SameChecksum  bool          `json:"same_checksum"`
	UploaderA     string        `json:"uploader_a"`
	UploaderB     string        `json:"uploader_b"`
}

// VersionHistorySummary aggregates a file's version history.
type VersionHistorySummary struct {
	FileID        string     `json:"file_id"`
	VersionCount  int        `json:"version_count"`
	CurrentNumber int        `json:"current_number"`
	TotalSize     int64      `json:"total_size"`
	UploaderCount int        `json:"uploader_count"`
	FirstUpload   *time.Time `json:"first_upload,omitempty"`
	LastUpload    *time.Time `json:"last_upload,omitempty"`
}
