package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	domain "github.com/gatherly/gatherly/internal/domain/token"
	"github.com/gatherly/gatherly/internal/domain/user"
	"github.com/gatherly/gatherly/internal/keys"
)

type CodecConfig struct {
	Issuer    string
	AccessTTL time.Duration
	Now       func() time.Time
}

// Codec is the stateless encoder/decoder for access tokens. It reads the
// active signing key per call, so rotation is picked up without restarts.
type Codec struct {
	keys *keys.Store
	cfg  CodecConfig
}

type AccessClaims struct {
	Email  string `json:"email"`
	UserID int64  `json:"userId"`
	jwt.RegisteredClaims
}

func NewCodec(ks *keys.Store, cfg CodecConfig) *Codec {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 30 * time.Minute
	}
	return &Codec{keys: ks, cfg: cfg}
}

// Encode mints a signed RS256 access token for u. The key id travels in the
// token header so a verifier can, in principle, select among trusted keys.
func (c *Codec) Encode(u *user.User) (string, time.Time, error) {
	now := c.cfg.Now()
	exp := now.Add(c.cfg.AccessTTL)
	k := c.keys.Active()

	claims := AccessClaims{
		Email:  u.Email,
		UserID: u.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			Issuer:    c.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = k.ID

	signed, err := tok.SignedString(k.Private)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

// Decode verifies raw against the currently active public key and nothing
// else. A token signed under a since-rotated key fails here even though it
// has not reached its own expiry.
func (c *Codec) Decode(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) {
			return c.keys.Active().Public(), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, domain.ErrMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, domain.ErrExpired
	default:
		return nil, domain.ErrSignatureInvalid
	}
}
