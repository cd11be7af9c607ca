package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the payload of access tokens minted by the external identity
// provider. The API validates the signature and trusts these fields.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
