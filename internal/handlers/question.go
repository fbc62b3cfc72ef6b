package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/qnahub/apiserver/internal/services"
	"github.com/qnahub/apiserver/types"
)

// QuestionHandler provides HTTP handlers for questions and their answers.
type QuestionHandler struct {
	questionService *services.QuestionService
	answerService   *services.AnswerService
}

// NewQuestionHandler constructs a handler with the provided services.
func NewQuestionHandler(questionService *services.QuestionService, answerService *services.AnswerService) *QuestionHandler {
	return &QuestionHandler{
		questionService: questionService,
		answerService:   answerService,
	}
}

// QuestionRouter registers question routes on the given router. Reads are
// public; every mutation runs behind authMiddleware.
func QuestionRouter(
	r chi.Router,
	questionService *services.QuestionService,
	answerService *services.AnswerService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewQuestionHandler(questionService, answerService)

	r.Get("/", handler.ListQuestions)
	r.With(authMiddleware).Post("/", handler.CreateQuestion)
	r.Route("/{questionID}", func(r chi.Router) {
		r.Get("/", handler.GetQuestion)
		r.Get("/answers", handler.ListAnswers)
		r.With(authMiddleware).Put("/", handler.UpdateQuestion)
		r.With(authMiddleware).Delete("/", handler.DeleteQuestion)
	})
}

func (h *QuestionHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.questionService.List(r.Context(), offset, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, QuestionListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *QuestionHandler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "questionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	question, err := h.questionService.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, question)
}

func (h *QuestionHandler) ListAnswers(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "questionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	answers, err := h.answerService.ListByQuestion(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, answers)
}

func (h *QuestionHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	accountID, err := sessionAccountID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req types.QuestionInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	created, err := h.questionService.Create(r.Context(), accountID, req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *QuestionHandler) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	accountID, err := sessionAccountID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	id, err := parseID(r, "questionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req types.QuestionInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	updated, err := h.questionService.Update(r.Context(), accountID, id, req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *QuestionHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	accountID, err := sessionAccountID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	id, err := parseID(r, "questionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.questionService.Delete(r.Context(), accountID, id); err != nil {
		respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// QuestionListResponse is the paginated list response payload.
type QuestionListResponse struct {
	Items []types.Question `json:"items"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
	Total int              `json:"total"`
}
