package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	domain "github.com/gatherly/gatherly/internal/domain/token"
	"github.com/gatherly/gatherly/internal/obs"
	"github.com/gatherly/gatherly/internal/services/auth-api/account"
)

// Accounts is the slice of the account usecase these endpoints need.
type Accounts interface {
	SignUp(ctx context.Context, email, password string) (*domain.Pair, error)
	SignIn(ctx context.Context, email, password string) (*domain.Pair, error)
}

type AccountHandler struct {
	log      *zap.Logger
	accounts Accounts
}

func NewAccountHandler(log *zap.Logger, accounts Accounts) *AccountHandler {
	return &AccountHandler{log: log, accounts: accounts}
}

func (h *AccountHandler) Register(r *mux.Router) {
	r.HandleFunc("/auth/signup", h.SignUp).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AccountHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		badRequest(w)
		return
	}

	log := obs.WithTrace(r.Context(), h.log)
	pair, err := h.accounts.SignUp(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, account.ErrWeakPassword):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password is too weak"})
	case errors.Is(err, account.ErrEmailExists):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
	case err != nil:
		log.Error("signup failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	default:
		log.Info("signup", zap.String("email", req.Email))
		writeJSON(w, http.StatusOK, pair)
	}
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		badRequest(w)
		return
	}

	log := obs.WithTrace(r.Context(), h.log)
	pair, err := h.accounts.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		log.Warn("login rejected", zap.String("email", req.Email), zap.Error(err))
		unauthorized(w)
		return
	}
	log.Info("login", zap.String("email", req.Email))
	writeJSON(w, http.StatusOK, pair)
}
