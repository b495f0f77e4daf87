package models

import "github.com/golang-jwt/jwt/v5"

const RoleAdmin = "admin"

type JWTClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}
