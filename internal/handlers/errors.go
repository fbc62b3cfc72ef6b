package handlers

import (
	"errors"
	"net/http"

	"github.com/qnahub/apiserver/internal/auth"
	"github.com/qnahub/apiserver/internal/logger"
	"github.com/qnahub/apiserver/internal/services"
	"github.com/qnahub/apiserver/internal/store"
	"github.com/rs/zerolog"
)

// respondError maps err to a status code and a generic message. Full detail
// only goes to the request log.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classify(err)

	log := zerolog.Ctx(r.Context())
	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	logger.WithError(event, err).Int("status", status).Msg(message)

	writeError(w, status, message)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrWrongPassword):
		return http.StatusUnauthorized, "Wrong E-mail/Password combination"
	case errors.Is(err, auth.ErrCannotDecryptToken):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized to change the resource"
	case errors.Is(err, services.ErrAccountAlreadyExists):
		return http.StatusUnprocessableEntity, "Account already exists"
	case errors.Is(err, errMalformedBody),
		errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrCannotHashPassword),
		errors.Is(err, auth.ErrEmptyPassword):
		return http.StatusUnprocessableEntity, "Cannot process request body"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Resource not found"
	case errors.Is(err, store.ErrPersistence):
		return http.StatusUnprocessableEntity, "Cannot update data"
	default:
		// Moderation provider and hashing failures land here; the provider's
		// own message never reaches the client.
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

// NotFound answers unmatched routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	zerolog.Ctx(r.Context()).Warn().Msg("route not found")
	writeError(w, http.StatusNotFound, "Route not found")
}

// MethodNotAllowed answers known routes hit with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MessageResponse{Message: "ok"})
}
