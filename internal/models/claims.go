package models

import "github.com/golang-jwt/jwt/v5"

// Claims holds the JWT claims carried by authenticated requests
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}
