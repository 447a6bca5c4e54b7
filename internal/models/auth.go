package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims are the caller claims supplied by the external identity
// provider. The engine consumes the user id, the admin flag and any
// protection override capabilities the provider has issued.
type JWTClaims struct {
	UserID       string   `json:"user_id"`
	IsAdmin      bool     `json:"is_admin"`
	Capabilities []string `json:"capabilities,omitempty"`
	jwt.RegisteredClaims
}
