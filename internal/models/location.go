package models

import "time"

// Tier identifies one physical storage backend category.
type Tier string

const (
	TierCDN    Tier = "cdn"
	TierCloud  Tier = "cloud"
	TierCache  Tier = "cache"
	TierBackup Tier = "backup"
)

// ReadPriority is the tier walk order for reads: fastest/cheapest first.
var ReadPriority = []Tier{TierCDN, TierCloud, TierCache, TierBackup}

// Valid reports whether the tier is one of the known backends.
func (t Tier) Valid() bool {
	switch t {
	case TierCDN, TierCloud, TierCache, TierBackup:
		return true
	}
	return false
}

// SyncStatus is the placement state of a Location.
type SyncStatus string

const (
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusPending SyncStatus = "pending"
	SyncStatusFailed  SyncStatus = "failed"
)

// Location records one (file, version) pair's presence in one tier.
// At most one synced location exists per (file, version, tier).
type Location struct {
	ID             string     `db:"id" json:"id"`
	FileID         string     `db:"file_id" json:"file_id"`
	VersionID      string     `db:"version_id" json:"version_id"`
	Tier           Tier       `db:"tier" json:"tier"`
	Provider       string     `db:"provider" json:"provider"`
	ProviderFileID string     `db:"provider_file_id" json:"provider_file_id"`
	RemotePath     string     `db:"remote_path" json:"remote_path"`
	URL            *string    `db:"url" json:"url,omitempty"`
	CDNURL         *string    `db:"cdn_url" json:"cdn_url,omitempty"`
	SyncStatus     SyncStatus `db:"sync_status" json:"sync_status"`
	LastSyncedAt   *time.Time `db:"last_synced_at" json:"last_synced_at,omitempty"`
	LastVerifiedAt *time.Time `db:"last_verified_at" json:"last_verified_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}
