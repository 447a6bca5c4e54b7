package models

import "time"

// ProtectionLevel restricts mutation of a file beyond the rwx model.
type ProtectionLevel string

const (
	ProtectionNone        ProtectionLevel = "none"
	ProtectionEditOnly    ProtectionLevel = "edit_only"
	ProtectionReplaceOnly ProtectionLevel = "replace_only"
	ProtectionFull        ProtectionLevel = "full"
)

// Valid reports whether the level is a known protection level.
func (l ProtectionLevel) Valid() bool {
	switch l {
	case ProtectionNone, ProtectionEditOnly, ProtectionReplaceOnly, ProtectionFull:
		return true
	}
	return false
}

// ProtectedAction is a mutation class checked against the protection level.
type ProtectedAction string

const (
	ActionEdit    ProtectedAction = "edit"
	ActionReplace ProtectedAction = "replace"
	ActionDelete  ProtectedAction = "delete"
)

// ProtectionRule maps an external status value to a protection level so
// files are locked down automatically when their status changes.
type ProtectionRule struct {
	ID          string          `db:"id" json:"id"`
	Trigger     string          `db:"trigger_value" json:"trigger_value"`
	Level       ProtectionLevel `db:"level" json:"level"`
	OverrideCap string          `db:"override_capability" json:"override_capability"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Protection log actions.
const (
	ProtectionActionProtect   = "protect"
	ProtectionActionUnprotect = "unprotect"
	ProtectionActionOverride  = "override"
)

// ProtectionLogEntry is an immutable audit record of a protection action.
type ProtectionLogEntry struct {
	ID        string          `db:"id" json:"id"`
	FileID    string          `db:"file_id" json:"file_id"`
	Action    string          `db:"action" json:"action"`
	Level     ProtectionLevel `db:"level" json:"level"`
	ActorID   string          `db:"actor_id" json:"actor_id"`
	Reason    *string         `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
