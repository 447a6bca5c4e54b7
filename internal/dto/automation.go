package dto

// SetPresetRequest activates a named automation preset.
type SetPresetRequest struct {
	Preset string `json:"preset" validate:"required,oneof=budget-conscious performance-first balanced archive-mode custom"`
}

// PresetRuleRequest is one threshold rule of a custom preset.
type PresetRuleRequest struct {
	Reason        string `json:"reason" validate:"required"`
	MinAccess     int64  `json:"minAccess" validate:"min=0"`
	MaxAccess     int64  `json:"maxAccess" validate:"min=0"`
	MinIdleDays   int    `json:"minIdleDays" validate:"min=0"`
	RequirePublic bool   `json:"requirePublic"`
	TargetTier    string `json:"targetTier" validate:"required,oneof=cdn cloud cache backup"`
}

// CustomPresetRequest replaces the custom preset's rule set.
type CustomPresetRequest struct {
	Rules []PresetRuleRequest `json:"rules" validate:"required,min=1,dive"`
}

// MoveFileRequest is a manual tier move, bypassing the scanner.
type MoveFileRequest struct {
	ToTier string `json:"toTier" validate:"required,oneof=cdn cloud cache backup"`
	Reason string `json:"reason"`
}
