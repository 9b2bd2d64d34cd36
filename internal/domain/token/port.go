package token

import (
	"context"

	"github.com/google/uuid"
)

// Repo is the durable record of issued refresh tokens.
type Repo interface {
	Create(ctx context.Context, t *RefreshToken) error

	// FindByID returns ErrNotFound when no row exists for id.
	FindByID(ctx context.Context, id uuid.UUID) (*RefreshToken, error)

	// ConditionalRevoke flips revoked from false to true and reports whether
	// this call was the one that flipped it. Concurrent callers for the same
	// id must see at most one true. This is the single-use guarantee for
	// rotation; plain read-then-write is not an acceptable implementation.
	ConditionalRevoke(ctx context.Context, id uuid.UUID) (bool, error)

	RevokeByFamily(ctx context.Context, familyID uuid.UUID) error
	RevokeByUser(ctx context.Context, userID int64) error

	// PurgeRevokedOrExpired is a best-effort housekeeping sweep with no
	// ordering guarantees relative to live traffic.
	PurgeRevokedOrExpired(ctx context.Context) (int64, error)
}

// Transactor groups several repo calls into one atomic unit.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
