package models

import "time"

// PresetName identifies one named bundle of automation thresholds.
type PresetName string

const (
	PresetBudgetConscious  PresetName = "budget-conscious"
	PresetPerformanceFirst PresetName = "performance-first"
	PresetBalanced         PresetName = "balanced"
	PresetArchiveMode      PresetName = "archive-mode"
	PresetCustom           PresetName = "custom"
)

// Valid reports whether the preset name is known.
func (p PresetName) Valid() bool {
	switch p {
	case PresetBudgetConscious, PresetPerformanceFirst, PresetBalanced, PresetArchiveMode, PresetCustom:
		return true
	}
	return false
}

// PresetRule is one threshold rule inside a preset. Rules are evaluated
// in slice order; the first match wins.
type PresetRule struct {
	Reason        string `json:"reason"`
	MinAccess     int64  `json:"min_access"`
	MaxAccess     int64  `json:"max_access"`
	MinIdleDays   int    `json:"min_idle_days"`
	RequirePublic bool   `json:"require_public"`
	TargetTier    Tier   `json:"target_tier"`
}

// Preset is a named, ordered rule set for tier reclassification.
type Preset struct {
	Name  PresetName   `json:"name"`
	Rules []PresetRule `json:"rules"`
}

// FileUsage is the per-file read model the automation scanner evaluates.
type FileUsage struct {
	FileID         string     `db:"file_id" json:"file_id"`
	VersionID      string     `db:"version_id" json:"version_id"`
	IsPublic       bool       `db:"is_public" json:"is_public"`
	CurrentTier    Tier       `db:"current_tier" json:"current_tier"`
	AccessCount    int64      `db:"access_count" json:"access_count"`
	LastAccessedAt *time.Time `db:"last_accessed_at" json:"last_accessed_at,omitempty"`
}

// AutomationLogEntry records one tier move decision.
type AutomationLogEntry struct {
	ID        string     `db:"id" json:"id"`
	FileID    string     `db:"file_id" json:"file_id"`
	Preset    PresetName `db:"preset" json:"preset"`
	FromTier  Tier       `db:"from_tier" json:"from_tier"`
	ToTier    Tier       `db:"to_tier" json:"to_tier"`
	Reason    string     `db:"reason" json:"reason"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
