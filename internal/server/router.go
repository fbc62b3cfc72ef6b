package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/qnahub/apiserver/internal/handlers"
	"github.com/qnahub/apiserver/internal/logger"
	"github.com/qnahub/apiserver/internal/services"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

const requestTimeout = 60 * time.Second

// Dependencies are the collaborators the HTTP API is composed from.
type Dependencies struct {
	Logger      zerolog.Logger
	Auth        *services.AuthService
	Questions   *services.QuestionService
	Answers     *services.AnswerService
	Tokens      handlers.TokenDecoder
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
}

// NewRouter builds the HTTP API.
func NewRouter(deps Dependencies) *chi.Mux {
	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logger.RequestLogger(deps.Logger),
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
		corsHandler.Handler,
	)
	router.NotFound(handlers.NotFound)
	router.MethodNotAllowed(handlers.MethodNotAllowed)

	router.Get("/healthz", handlers.Healthz)
	if deps.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	authMiddleware := handlers.RequireAuth(deps.Tokens)
	handlers.AuthRouter(router, deps.Auth)
	router.Route("/questions", func(r chi.Router) {
		handlers.QuestionRouter(r, deps.Questions, deps.Answers, authMiddleware)
	})
	router.Route("/answers", func(r chi.Router) {
		handlers.AnswerRouter(r, deps.Answers, authMiddleware)
	})

	return router
}
