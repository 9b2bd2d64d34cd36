package token

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session credential failures. The HTTP layer collapses every one of these
// into a generic unauthorized response; the concrete kind only ever reaches
// server-side logs.
var (
	ErrInvalidFormat    = errors.New("refresh token has invalid format")
	ErrNotFound         = errors.New("refresh token not found")
	ErrExpired          = errors.New("token expired")
	ErrReuseDetected    = errors.New("refresh token reuse detected")
	ErrMalformed        = errors.New("access token malformed")
	ErrSignatureInvalid = errors.New("access token signature invalid")
)

// RefreshToken is one generation of a single-use server-tracked credential.
// FamilyID ties together every generation descending from one login, which is
// what makes replay of a consumed token detectable. The only mutation a row
// ever sees is Revoked flipping to true.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    int64
	FamilyID  uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Pair is what a successful login or refresh hands back to the client.
type Pair struct {
	AccessToken           string    `json:"accessToken"`
	RefreshToken          string    `json:"refreshToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}
