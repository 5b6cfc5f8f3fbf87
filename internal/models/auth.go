package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload identifying the calling user.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
