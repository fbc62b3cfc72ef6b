package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/qnahub/apiserver/internal/services"
	"github.com/qnahub/apiserver/types"
)

// AnswerHandler provides HTTP handlers for answers.
type AnswerHandler struct {
	answerService *services.AnswerService
}

func NewAnswerHandler(answerService *services.AnswerService) *AnswerHandler {
	return &AnswerHandler{answerService: answerService}
}

// AnswerRouter registers answer routes; all of them require a session.
func AnswerRouter(r chi.Router, answerService *services.AnswerService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewAnswerHandler(answerService)

	r.Use(authMiddleware)
	r.Post("/", handler.CreateAnswer)
	r.Put("/{answerID}", handler.UpdateAnswer)
	r.Delete("/{answerID}", handler.DeleteAnswer)
}

func (h *AnswerHandler) CreateAnswer(w http.ResponseWriter, r *http.Request) {
	accountID, err := sessionAccountID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req types.AnswerInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	created, err := h.answerService.Create(r.Context(), accountID, req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *AnswerHandler) UpdateAnswer(w http.ResponseWriter, r *http.Request) {
	accountID, err := sessionAccountID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	id, err := parseID(r, "answerID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req types.AnswerInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	updated, err := h.answerService.Update(r.Context(), accountID, id, req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *AnswerHandler) DeleteAnswer(w http.ResponseWriter, r *http.Request) {
	accountID, err := sessionAccountID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	id, err := parseID(r, "answerID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.answerService.Delete(r.Context(), accountID, id); err != nil {
		respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
