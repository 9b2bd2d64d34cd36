package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gatherly/gatherly/internal/domain/token"
)

var _ token.Repo = (*RefreshTokenRepo)(nil)

type RefreshTokenRepo struct{ db *DB }

func NewRefreshTokenRepo(db *DB) *RefreshTokenRepo { return &RefreshTokenRepo{db: db} }

const (
	qRTInsert = `
INSERT INTO refresh_tokens (id, user_id, family_id, issued_at, expires_at, revoked)
VALUES ($1, $2, $3, $4, $5, FALSE);
`
	qRTByID = `
SELECT id, user_id, family_id, issued_at, expires_at, revoked
FROM refresh_tokens
WHERE id = $1;
`
	// The revoked = FALSE guard turns revocation into a compare-and-set:
	// under concurrent rotation of one token, exactly one caller sees
	// rows-affected = 1.
	qRTConditionalRevoke = `
UPDATE refresh_tokens SET revoked = TRUE WHERE id = $1 AND revoked = FALSE;
`
	qRTRevokeFamily = `
UPDATE refresh_tokens SET revoked = TRUE WHERE family_id = $1 AND revoked = FALSE;
`
	qRTRevokeUser = `
UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE;
`
	qRTPurge = `
DELETE FROM refresh_tokens WHERE revoked = TRUE OR expires_at < NOW();
`
)

func (r *RefreshTokenRepo) Create(ctx context.Context, t *token.RefreshToken) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qRTInsert,
		t.ID, t.UserID, t.FamilyID, t.IssuedAt, t.ExpiresAt); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) FindByID(ctx context.Context, id uuid.UUID) (*token.RefreshToken, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t token.RefreshToken
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qRTByID, id).
		Scan(&t.ID, &t.UserID, &t.FamilyID, &t.IssuedAt, &t.ExpiresAt, &t.Revoked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, token.ErrNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &t, nil
}

func (r *RefreshTokenRepo) ConditionalRevoke(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qRTConditionalRevoke, id)
	if err != nil {
		return false, fmt.Errorf("conditional revoke: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *RefreshTokenRepo) RevokeByFamily(ctx context.Context, familyID uuid.UUID) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qRTRevokeFamily, familyID); err != nil {
		return fmt.Errorf("revoke family: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) RevokeByUser(ctx context.Context, userID int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qRTRevokeUser, userID); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) PurgeRevokedOrExpired(ctx context.Context) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qRTPurge)
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
