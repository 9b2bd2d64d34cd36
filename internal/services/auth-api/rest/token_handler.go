package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	domain "github.com/gatherly/gatherly/internal/domain/token"
	"github.com/gatherly/gatherly/internal/keys"
	"github.com/gatherly/gatherly/internal/obs"
)

// TokenRotator is the slice of the token manager these endpoints need.
type TokenRotator interface {
	Rotate(ctx context.Context, raw string) (*domain.Pair, error)
	Logout(ctx context.Context, raw string) error
}

// TokenHandler exposes the session-credential endpoints: JWKS, refresh,
// logout, and administrative key rotation.
type TokenHandler struct {
	log    *zap.Logger
	tokens TokenRotator
	keys   *keys.Store
}

func NewTokenHandler(log *zap.Logger, tokens TokenRotator, ks *keys.Store) *TokenHandler {
	return &TokenHandler{log: log, tokens: tokens, keys: ks}
}

func (h *TokenHandler) Register(r *mux.Router) {
	r.HandleFunc("/.well-known/jwks.json", h.JWKS).Methods(http.MethodGet)
	r.HandleFunc("/auth/refresh", h.Refresh).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)
	r.HandleFunc("/admin/keys/rotate", h.RotateKeys).Methods(http.MethodPost)
}

// JWKS publishes the public portion of the active signing key. No auth.
func (h *TokenHandler) JWKS(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.keys.JWKS())
}

func (h *TokenHandler) RotateKeys(w http.ResponseWriter, r *http.Request) {
	log := obs.WithTrace(r.Context(), h.log)
	if err := h.keys.Rotate(); err != nil {
		log.Error("manual key rotation failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "key rotation failed"})
		return
	}
	log.Info("manual key rotation")
	writeJSON(w, http.StatusOK, map[string]string{"message": "keys rotated"})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *TokenHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		badRequest(w)
		return
	}

	pair, err := h.tokens.Rotate(r.Context(), req.RefreshToken)
	if err != nil {
		obs.WithTrace(r.Context(), h.log).Warn("refresh rejected", zap.Error(err))
		unauthorized(w)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *TokenHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		badRequest(w)
		return
	}

	if err := h.tokens.Logout(r.Context(), req.RefreshToken); err != nil {
		obs.WithTrace(r.Context(), h.log).Warn("logout rejected", zap.Error(err))
		unauthorized(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
