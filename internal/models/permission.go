package models

import "time"

// PermissionType is the category of a permission entry, Unix-style.
type PermissionType string

const (
	PermissionOwner PermissionType = "owner"
	PermissionGroup PermissionType = "group"
	PermissionWorld PermissionType = "world"
)

// PermissionBit names one of the three access bits.
type PermissionBit string

const (
	BitRead    PermissionBit = "read"
	BitWrite   PermissionBit = "write"
	BitExecute PermissionBit = "execute"
)

// Valid reports whether the bit is one of read/write/execute.
func (b PermissionBit) Valid() bool {
	switch b {
	case BitRead, BitWrite, BitExecute:
		return true
	}
	return false
}

// PermissionEntry grants rwx bits on a file to an owner, a workspace
// group, or the world. Subject is a user id for owner entries, a
// workspace id for group entries, and nil for world entries.
type PermissionEntry struct {
	ID                string         `db:"id" json:"id"`
	FileID            string         `db:"file_id" json:"file_id"`
	Type              PermissionType `db:"type" json:"type"`
	Subject           *string        `db:"subject" json:"subject,omitempty"`
	CanRead           bool           `db:"can_read" json:"can_read"`
	CanWrite          bool           `db:"can_write" json:"can_write"`
	CanExecute        bool           `db:"can_execute" json:"can_execute"`
	InheritToChildren bool           `db:"inherit_to_children" json:"inherit_to_children"`
	ExpiresAt         *time.Time     `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}

// Expired reports whether the entry has lapsed.
func (p *PermissionEntry) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}

// HasBit reports whether the requested bit is set on this entry.
func (p *PermissionEntry) HasBit(bit PermissionBit) bool {
	switch bit {
	case BitRead:
		return p.CanRead
	case BitWrite:
		return p.CanWrite
	case BitExecute:
		return p.CanExecute
	}
	return false
}
