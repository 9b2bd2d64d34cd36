package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domain "github.com/gatherly/gatherly/internal/domain/token"
	"github.com/gatherly/gatherly/internal/keys"
)

type fakeRotator struct {
	rotateErr error
	logoutErr error
}

func (f *fakeRotator) Rotate(_ context.Context, raw string) (*domain.Pair, error) {
	if f.rotateErr != nil {
		return nil, f.rotateErr
	}
	return &domain.Pair{
		AccessToken:           "new-access",
		RefreshToken:          "new-refresh",
		AccessTokenExpiresAt:  time.Now().Add(30 * time.Minute),
		RefreshTokenExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	}, nil
}

func (f *fakeRotator) Logout(_ context.Context, raw string) error { return f.logoutErr }

func newRouter(t *testing.T, rot *fakeRotator) (*mux.Router, *keys.Store) {
	t.Helper()
	ks, err := keys.NewStore(keys.Config{}, zap.NewNop())
	require.NoError(t, err)

	r := mux.NewRouter()
	NewTokenHandler(zap.NewNop(), rot, ks).Register(r)
	return r, ks
}

func TestJWKSEndpoint(t *testing.T) {
	r, ks := newRouter(t, &fakeRotator{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var set keys.JWKSet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &set))
	require.Len(t, set.Keys, 1)
	require.Equal(t, ks.Active().ID, set.Keys[0].Kid)
	require.NotEmpty(t, set.Keys[0].N)
	require.NotEmpty(t, set.Keys[0].E)
}

func TestAdminRotate_ChangesPublishedKey(t *testing.T) {
	r, ks := newRouter(t, &fakeRotator{})
	before := ks.Active().ID

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/keys/rotate", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEqual(t, before, ks.Active().ID)
}

func TestRefresh_Success(t *testing.T) {
	r, _ := newRouter(t, &fakeRotator{})

	body := strings.NewReader(`{"refreshToken":"2b1f9df2-5f3b-44ad-9d92-1c5a9c7b53a3"}`)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/refresh", body))

	require.Equal(t, http.StatusOK, rec.Code)
	var pair domain.Pair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	require.Equal(t, "new-access", pair.AccessToken)
	require.Equal(t, "new-refresh", pair.RefreshToken)
}

func TestRefresh_ErrorsAreUniform(t *testing.T) {
	// Whatever went wrong internally, the client sees one opaque 401.
	for _, tokenErr := range []error{
		domain.ErrInvalidFormat,
		domain.ErrNotFound,
		domain.ErrExpired,
		domain.ErrReuseDetected,
	} {
		r, _ := newRouter(t, &fakeRotator{rotateErr: tokenErr})

		body := strings.NewReader(`{"refreshToken":"whatever"}`)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/refresh", body))

		require.Equal(t, http.StatusUnauthorized, rec.Code, "error %v", tokenErr)
		require.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String(), "error %v", tokenErr)
	}
}

func TestRefresh_MissingToken(t *testing.T) {
	r, _ := newRouter(t, &fakeRotator{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(`{}`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogout(t *testing.T) {
	r, _ := newRouter(t, &fakeRotator{})

	body := strings.NewReader(`{"refreshToken":"2b1f9df2-5f3b-44ad-9d92-1c5a9c7b53a3"}`)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", body))

	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLogout_InvalidToken(t *testing.T) {
	r, _ := newRouter(t, &fakeRotator{logoutErr: domain.ErrNotFound})

	body := strings.NewReader(`{"refreshToken":"already-gone"}`)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", body))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
