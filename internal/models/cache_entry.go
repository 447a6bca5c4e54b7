package models

import "time"

// CacheEntry tracks one (file, version) copy held in the local cache tier.
type CacheEntry struct {
	ID             string     `db:"id" json:"id"`
	FileID         string     `db:"file_id" json:"file_id"`
	VersionID      string     `db:"version_id" json:"version_id"`
	LocalPath      string     `db:"local_path" json:"local_path"`
	Size           int64      `db:"size" json:"size"`
	HitCount       int64      `db:"hit_count" json:"hit_count"`
	LastAccessedAt time.Time  `db:"last_accessed_at" json:"last_accessed_at"`
	ExpiresAt      *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	Valid          bool       `db:"valid" json:"valid"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// Expired reports whether the entry is past its expiry.
func (e *CacheEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}
