package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"realtime-collab/internal/store"
	"realtime-collab/pkg/auth"
)

//go:generate mockgen -destination=../mocks/http.go -package=mocks realtime-collab/internal/http UserStore,Revoker,Executor

// UserStore is the identity provider's account storage
type UserStore interface {
	CreateUser(ctx context.Context, email, username, password string) (store.User, error)
	VerifyUser(ctx context.Context, email, password string) (store.User, error)
}

var validate = validator.New()

type AuthAPI struct {
	DB      UserStore
	JWT     *auth.JWT
	Revoked Revoker
	TTL     time.Duration
	Log     *slog.Logger
}

type registerReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Username string `json:"username" validate:"omitempty,max=64"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}
type tokenResp struct {
	Success bool        `json:"success"`
	Token   string      `json:"token"`
	User    authUserDTO `json:"user"`
}
type authUserDTO struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username"`
	Provider string `json:"provider"`
}
type meResp struct {
	Authenticated bool         `json:"authenticated"`
	User          *authUserDTO `json:"user,omitempty"`
}

// Register handles user signup and returns a JWT
func (a *AuthAPI) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid email or weak password")
		return
	}

	u, err := a.DB.CreateUser(r.Context(), req.Email, req.Username, req.Password)
	if errors.Is(err, store.ErrEmailTaken) {
		writeError(w, http.StatusBadRequest, "User already exists")
		return
	}
	if err != nil {
		a.Log.Error("auth.register", "err", err)
		writeError(w, http.StatusInternalServerError, "could not register")
		return
	}
	a.issue(w, u.ID, u.Username, u.Email, false)
}

// Login verifies credentials and returns a JWT
func (a *AuthAPI) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	u, err := a.DB.VerifyUser(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Incorrect email or password.")
		return
	}
	a.issue(w, u.ID, u.Username, u.Email, false)
}

// Guest issues a token for a throwaway identity; nothing is stored
func (a *AuthAPI) Guest(w http.ResponseWriter, _ *http.Request) {
	id := "guest_" + uuid.NewString()
	name := fmt.Sprintf("Guest_%d", rand.Intn(10000))
	a.issue(w, id, name, "", true)
}

// Logout revokes the caller's token until it would have expired anyway
func (a *AuthAPI) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if a.Revoked != nil && claims.ExpiresAt != nil {
		if err := a.Revoked.Revoke(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
			a.Log.Error("auth.logout", "err", err)
			writeError(w, http.StatusInternalServerError, "Error logging out")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out successfully"})
}

// Me describes the caller, or reports that there is no valid token
func (a *AuthAPI) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, meResp{Authenticated: false})
		return
	}
	u := userDTO(claims.UserID(), claims.Username, claims.Email, claims.Guest)
	writeJSON(w, http.StatusOK, meResp{Authenticated: true, User: &u})
}

func (a *AuthAPI) issue(w http.ResponseWriter, id, username, email string, guest bool) {
	tok, _, err := a.JWT.Sign(id, username, email, guest, a.TTL)
	if err != nil {
		a.Log.Error("auth.sign", "err", err)
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResp{Success: true, Token: tok, User: userDTO(id, username, email, guest)})
}

func userDTO(id, username, email string, guest bool) authUserDTO {
	provider := "local"
	if guest {
		provider = "guest"
	}
	return authUserDTO{ID: id, Email: email, Username: username, Provider: provider}
}

// send JSON with proper headers
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
