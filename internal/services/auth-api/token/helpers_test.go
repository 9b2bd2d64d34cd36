package token

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domain "github.com/gatherly/gatherly/internal/domain/token"
	"github.com/gatherly/gatherly/internal/domain/user"
	"github.com/gatherly/gatherly/internal/keys"
	"github.com/gatherly/gatherly/internal/repository/postgres"
)

func testKeyStore(t *testing.T) *keys.Store {
	t.Helper()
	s, err := keys.NewStore(keys.Config{}, zap.NewNop())
	require.NoError(t, err)
	return s
}

// memRepo is an in-memory token.Repo with the same compare-and-set semantics
// the SQL implementation gets from its WHERE revoked = FALSE guard.
type memRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]domain.RefreshToken
}

var _ domain.Repo = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[uuid.UUID]domain.RefreshToken)}
}

func (r *memRepo) Create(_ context.Context, t *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[t.ID] = *t
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &row, nil
}

func (r *memRepo) ConditionalRevoke(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Revoked {
		return false, nil
	}
	row.Revoked = true
	r.rows[id] = row
	return true, nil
}

func (r *memRepo) RevokeByFamily(_ context.Context, familyID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, row := range r.rows {
		if row.FamilyID == familyID {
			row.Revoked = true
			r.rows[id] = row
		}
	}
	return nil
}

func (r *memRepo) RevokeByUser(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, row := range r.rows {
		if row.UserID == userID {
			row.Revoked = true
			r.rows[id] = row
		}
	}
	return nil
}

func (r *memRepo) PurgeRevokedOrExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now()
	for id, row := range r.rows {
		if row.Revoked || now.After(row.ExpiresAt) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

func (r *memRepo) get(t *testing.T, id uuid.UUID) domain.RefreshToken {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	require.True(t, ok, "row %s not found", id)
	return row
}

func (r *memRepo) setExpiry(id uuid.UUID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.rows[id]
	row.ExpiresAt = at
	r.rows[id] = row
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type memUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]user.User
}

var _ user.Repo = (*memUsers)(nil)

func newMemUsers() *memUsers { return &memUsers{byID: make(map[int64]user.User)} }

func (r *memUsers) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Email == u.Email {
			return postgres.ErrConflict
		}
	}
	r.nextID++
	u.ID = r.nextID
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	r.byID[u.ID] = *u
	return nil
}

func (r *memUsers) GetByID(_ context.Context, id int64) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	return &u, nil
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, postgres.ErrNotFound
}

// passthroughTx satisfies the transactor contract without a database. The
// in-memory repo's operations are individually atomic, which is all these
// tests need.
type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type testEnv struct {
	keys    *keys.Store
	repo    *memRepo
	users   *memUsers
	manager *Manager
	user    *user.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ks := testKeyStore(t)
	repo := newMemRepo()
	users := newMemUsers()

	u := &user.User{Email: "ada@example.com", Password: "irrelevant"}
	require.NoError(t, users.Create(context.Background(), u))

	codec := NewCodec(ks, CodecConfig{Issuer: "http://localhost:8080"})
	mgr := NewManager(codec, repo, users, passthroughTx{}, zap.NewNop(), ManagerConfig{})
	return &testEnv{keys: ks, repo: repo, users: users, manager: mgr, user: u}
}
