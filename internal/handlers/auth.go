package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/qnahub/apiserver/internal/auth"
	"github.com/qnahub/apiserver/internal/services"
	"github.com/qnahub/apiserver/types"
	"github.com/rs/zerolog"
	"github.com/samber/oops"
)

// TokenDecoder turns a presented token into a trusted session.
type TokenDecoder interface {
	Decode(token string) (auth.Session, error)
}

// AuthHandler provides registration and login endpoints.
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, authService *services.AuthService) {
	handler := NewAuthHandler(authService)

	r.Post("/registration", handler.Register)
	r.Post("/login", handler.Login)
}

// Register creates a new account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req types.Credentials
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.authService.Register(r.Context(), req); err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Account created"})
}

// Login verifies credentials and returns the session token as a JSON string.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.Credentials
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	token, err := h.authService.Login(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, token)
}

// RequireAuth decodes the Authorization header into a session and stores it
// in the request context. Requests without a valid token are rejected with
// 401 and never reach next.
func RequireAuth(tokens TokenDecoder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := tokenFromHeader(r)
			if !ok {
				respondError(w, r, oops.Code("AUTH_MISSING_TOKEN").Wrap(auth.ErrCannotDecryptToken))
				return
			}

			session, err := tokens.Decode(token)
			if err != nil {
				respondError(w, r, err)
				return
			}

			ctx := auth.WithSession(r.Context(), session)
			ctx = zerolog.Ctx(ctx).With().Int("account_id", session.AccountID).Logger().WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromHeader accepts either the raw token or "Bearer <token>".
func tokenFromHeader(r *http.Request) (string, bool) {
	value := strings.TrimSpace(r.Header.Get("Authorization"))
	if value == "" {
		return "", false
	}
	if scheme, rest, found := strings.Cut(value, " "); found && strings.EqualFold(scheme, "Bearer") {
		value = strings.TrimSpace(rest)
	}
	if value == "" {
		return "", false
	}
	return value, true
}

func sessionAccountID(r *http.Request) (int, error) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		return 0, oops.Code("AUTH_NO_SESSION").Wrap(auth.ErrCannotDecryptToken)
	}
	return session.AccountID, nil
}
