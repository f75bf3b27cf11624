package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/cardshop/api/internal/auth"
	"github.com/cardshop/api/internal/domain/user"
)

// claimsKey is the context key for the authenticated caller's claims.
type claimsKey struct{}

// callerFromContext returns the verified claims of the current request.
func callerFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok
}

// authed requires a valid bearer token and stores its claims in the request
// context.
func (h *Handler) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			h.writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := h.tokens.Verify(raw)
		if err != nil {
			h.writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next(w, r.WithContext(ctx))
	}
}

// admin requires a valid bearer token carrying the ADMIN role.
func (h *Handler) admin(next http.HandlerFunc) http.HandlerFunc {
	return h.authed(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := callerFromContext(r.Context())
		if claims == nil || claims.Role != string(user.RoleAdmin) {
			h.writeError(w, r, http.StatusForbidden, "admin role required")
			return
		}
		next(w, r)
	})
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func toUserView(u *user.User) userView {
	return userView{ID: u.ID, Name: u.Name, Email: u.Email, Role: string(u.Role)}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		h.writeError(w, r, http.StatusBadRequest, "name, email and password are required")
		return
	}

	u, err := h.users.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			h.writeError(w, r, http.StatusConflict, "email already registered")
			return
		}
		zctx.From(r.Context()).Error("Register user", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, r, http.StatusCreated, toUserView(u))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string   `json:"access_token"`
	User        userView `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			h.writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		zctx.From(r.Context()).Error("Authenticate user", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	token, err := h.tokens.Issue(u.ID, u.Email, string(u.Role))
	if err != nil {
		zctx.From(r.Context()).Error("Issue token", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, r, http.StatusOK, loginResponse{
		AccessToken: token,
		User:        toUserView(u),
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := callerFromContext(r.Context())

	u, err := h.users.Get(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			h.writeError(w, r, http.StatusNotFound, "user not found")
			return
		}
		zctx.From(r.Context()).Error("Get user", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, r, http.StatusOK, toUserView(u))
}
