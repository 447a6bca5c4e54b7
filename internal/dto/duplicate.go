package dto

// MergeDuplicatesRequest collapses a checksum group onto one survivor.
type MergeDuplicatesRequest struct {
	ChecksumMD5 string `json:"checksumMd5" validate:"required"`
	Keep        string `json:"keep" validate:"required,oneof=oldest newest largest smallest"`
}
