package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ActorKind distinguishes the two authenticated populations.
type ActorKind string

const (
	ActorCustomer ActorKind = "customer"
	ActorStaff    ActorKind = "staff"
)

// IsValid reports whether the value is a known ActorKind.
func (a ActorKind) IsValid() bool {
	return a == ActorCustomer || a == ActorStaff
}

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	ActorID uuid.UUID
	Kind    ActorKind
	JTI     string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	ActorID uuid.UUID `json:"actor_id"`
	Kind    ActorKind `json:"kind"`
	jwt.RegisteredClaims
}
