package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	domain "github.com/gatherly/gatherly/internal/domain/token"
	"github.com/gatherly/gatherly/internal/domain/user"
)

type ManagerConfig struct {
	RefreshTTL time.Duration
	Now        func() time.Time
}

// Manager orchestrates issuance, single-use rotation, reuse detection and
// revocation of refresh tokens. Refresh tokens are opaque random ids; all
// validity lives in the store.
type Manager struct {
	codec *Codec
	repo  domain.Repo
	users user.Repo
	tx    domain.Transactor
	log   *zap.Logger
	cfg   ManagerConfig
}

func NewManager(codec *Codec, repo domain.Repo, users user.Repo, tx domain.Transactor, log *zap.Logger, cfg ManagerConfig) *Manager {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Manager{codec: codec, repo: repo, users: users, tx: tx, log: log, cfg: cfg}
}

// Issue starts a brand-new token family for u: one refresh token row plus a
// freshly minted access token.
func (m *Manager) Issue(ctx context.Context, u *user.User) (*domain.Pair, error) {
	ctx, span := otel.Tracer("auth.token").Start(ctx, "token.issue")
	defer span.End()

	return m.issue(ctx, u, uuid.New(), m.cfg.Now())
}

func (m *Manager) issue(ctx context.Context, u *user.User, familyID uuid.UUID, now time.Time) (*domain.Pair, error) {
	access, accessExp, err := m.codec.Encode(u)
	if err != nil {
		return nil, err
	}

	row := &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    u.ID,
		FamilyID:  familyID,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.cfg.RefreshTTL),
	}
	if err := m.repo.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &domain.Pair{
		AccessToken:           access,
		RefreshToken:          row.ID.String(),
		AccessTokenExpiresAt:  accessExp,
		RefreshTokenExpiresAt: row.ExpiresAt,
	}, nil
}

// Rotate exchanges a live refresh token for a new pair in the same family.
// Presenting an already-consumed token poisons the whole family, including
// the legitimate holder's still-valid sibling; the only way back in is a
// fresh login. Plain expiry is not treated as evidence of theft.
func (m *Manager) Rotate(ctx context.Context, raw string) (*domain.Pair, error) {
	ctx, span := otel.Tracer("auth.token").Start(ctx, "token.rotate")
	defer span.End()

	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, domain.ErrInvalidFormat
	}

	row, err := m.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if row.Revoked {
		return nil, m.reuseDetected(ctx, row)
	}

	now := m.cfg.Now()
	if row.Expired(now) {
		return nil, domain.ErrExpired
	}

	u, err := m.users.GetByID(ctx, row.UserID)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	// Consume-and-replace is one transaction: either the old row is revoked
	// and the new one exists, or neither happened.
	var (
		pair *domain.Pair
		won  bool
	)
	err = m.tx.WithTx(ctx, func(txCtx context.Context) error {
		ok, err := m.repo.ConditionalRevoke(txCtx, row.ID)
		if err != nil {
			return fmt.Errorf("consume refresh token: %w", err)
		}
		if !ok {
			return nil
		}
		won = true
		pair, err = m.issue(txCtx, u, row.FamilyID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !won {
		// Someone else consumed this exact token between our read and the
		// conditional update. From this caller's point of view that is a
		// replay, and it fails closed like one.
		return nil, m.reuseDetected(ctx, row)
	}

	span.SetAttributes(attribute.String("token.family_id", row.FamilyID.String()))
	return pair, nil
}

func (m *Manager) reuseDetected(ctx context.Context, row *domain.RefreshToken) error {
	if err := m.repo.RevokeByFamily(ctx, row.FamilyID); err != nil {
		m.log.Error("family revocation after reuse failed",
			zap.Stringer("family_id", row.FamilyID), zap.Error(err))
		return err
	}
	m.log.Warn("refresh token reuse detected, family revoked",
		zap.Stringer("family_id", row.FamilyID),
		zap.Int64("user_id", row.UserID))
	return domain.ErrReuseDetected
}

// RevokeFamily kills every generation of one login lineage.
func (m *Manager) RevokeFamily(ctx context.Context, familyID uuid.UUID) error {
	return m.repo.RevokeByFamily(ctx, familyID)
}

// RevokeAllForUser kills every outstanding session of a user, across
// families. Used on credential change.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID int64) error {
	return m.repo.RevokeByUser(ctx, userID)
}

// Logout resolves the presented token to its family and revokes the family
// entirely. A second logout with the same token fails validation instead of
// re-revoking.
func (m *Manager) Logout(ctx context.Context, raw string) error {
	ctx, span := otel.Tracer("auth.token").Start(ctx, "token.logout")
	defer span.End()

	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return domain.ErrInvalidFormat
	}
	row, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if row.Revoked {
		return domain.ErrNotFound
	}
	if err := m.repo.RevokeByFamily(ctx, row.FamilyID); err != nil {
		return fmt.Errorf("revoke family: %w", err)
	}
	m.log.Info("logout", zap.Int64("user_id", row.UserID), zap.Stringer("family_id", row.FamilyID))
	return nil
}
