package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	domain "github.com/gatherly/gatherly/internal/domain/token"
	"github.com/gatherly/gatherly/internal/domain/user"
	"github.com/gatherly/gatherly/internal/repository/postgres"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password is too weak")
)

// TokenIssuer starts a new session for an authenticated user. Satisfied by
// the token manager.
type TokenIssuer interface {
	Issue(ctx context.Context, u *user.User) (*domain.Pair, error)
}

// Usecase covers signup and login. Everything session-related is delegated
// to the token manager; this is the minimal account store the auth endpoints
// need.
type Usecase struct {
	users  user.Repo
	tokens TokenIssuer
}

func NewUsecase(users user.Repo, tokens TokenIssuer) *Usecase {
	return &Usecase{users: users, tokens: tokens}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (u *Usecase) SignUp(ctx context.Context, email, password string) (*domain.Pair, error) {
	email = normalizeEmail(email)
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	newUser := &user.User{Email: email, Password: string(hash)}
	if err := u.users.Create(ctx, newUser); err != nil {
		if errors.Is(err, postgres.ErrConflict) {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	return u.tokens.Issue(ctx, newUser)
}

func (u *Usecase) SignIn(ctx context.Context, email, password string) (*domain.Pair, error) {
	email = normalizeEmail(email)
	rec, err := u.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u.tokens.Issue(ctx, rec)
}
