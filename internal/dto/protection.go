package dto

// ProtectFileRequest applies a protection level to a file.
type ProtectFileRequest struct {
	Level              string `json:"level" validate:"required,oneof=edit_only replace_only full"`
	OverrideCapability string `json:"overrideCapability"`
	Reason             string `json:"reason"`
}

// UnprotectFileRequest clears a file's protection.
type UnprotectFileRequest struct {
	Reason string `json:"reason"`
}

// ApplyStatusRequest reports an external status change so matching
// protection rules can fire.
type ApplyStatusRequest struct {
	Status string `json:"status" validate:"required"`
}
