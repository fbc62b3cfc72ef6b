package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/qnahub/apiserver/config"
	"github.com/qnahub/apiserver/internal/auth"
	"github.com/qnahub/apiserver/internal/db"
	"github.com/qnahub/apiserver/internal/moderation"
	"github.com/qnahub/apiserver/internal/mq"
	"github.com/qnahub/apiserver/internal/services"
	"github.com/qnahub/apiserver/internal/storage"
	"github.com/qnahub/apiserver/internal/store"
	"github.com/rs/zerolog"
	"github.com/samber/oops"
)

// Server wraps the HTTP server, router and the connections they hold.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     *mq.MQ
	archive    storage.ObjectStorage
	logger     zerolog.Logger
}

// New validates cfg, connects every backend and composes the API. Missing
// secrets fail here rather than on the first request.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	key, err := auth.ParseKey(cfg.Auth.TokenKey)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrapf(err, "TOKEN_KEY")
	}
	tokens, err := auth.NewTokenCodec(key, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}
	hasher := auth.NewPasswordHasher(auth.DefaultParams, int64(cfg.Auth.MaxConcurrent))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	moderator, err := moderation.New(moderationConfig(cfg.Moderation),
		moderation.WithMetrics(moderation.NewMetrics(registry)),
	)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	s := &Server{logger: log}

	s.db, err = db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	var contentOpts []services.ContentOption

	s.events, err = mq.Open(ctx, cfg.Events)
	if err != nil {
		s.close()
		return nil, err
	}
	if s.events != nil {
		contentOpts = append(contentOpts, services.WithEvents(mq.NewContentEvents(s.events, cfg.Events.Channel)))
		log.Info().Str("backend", cfg.Events.Backend).Str("channel", cfg.Events.Channel).Msg("content events enabled")
	}

	s.archive, err = storage.Open(ctx, cfg.Audit)
	if err != nil {
		s.close()
		return nil, err
	}
	if s.archive != nil {
		contentOpts = append(contentOpts, services.WithAudit(storage.NewAuditArchive(s.archive)))
		log.Info().Str("backend", cfg.Audit.Backend).Str("bucket", s.archive.Bucket()).Msg("moderation audit enabled")
	}

	accountRepo := store.NewAccountRepository(s.db)
	questionRepo := store.NewQuestionRepository(s.db)
	answerRepo := store.NewAnswerRepository(s.db)

	s.router = NewRouter(Dependencies{
		Logger:      log,
		Auth:        services.NewAuthService(accountRepo, hasher, tokens),
		Questions:   services.NewQuestionService(questionRepo, moderator, contentOpts...),
		Answers:     services.NewAnswerService(answerRepo, questionRepo, moderator, contentOpts...),
		Tokens:      tokens,
		Gatherer:    registry,
		CORSOrigins: cfg.CORSOrigins,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes every backend.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("closing audit storage")
		}
	}
	if s.events != nil {
		if err := s.events.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("closing events backend")
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("closing database")
		}
	}
}

func moderationConfig(cfg config.ModerationConfig) moderation.Config {
	policy := moderation.DefaultPolicy
	if cfg.MaxRetries >= 0 {
		policy.MaxRetries = uint64(cfg.MaxRetries)
	}
	if cfg.BaseDelay > 0 {
		policy.BaseDelay = cfg.BaseDelay
	}
	if cfg.BackoffMultiplier > 0 {
		policy.Multiplier = cfg.BackoffMultiplier
	}
	if cfg.MaxDelay > 0 {
		policy.MaxDelay = cfg.MaxDelay
	}

	return moderation.Config{
		BaseURL:         cfg.BaseURL,
		APIKey:          cfg.APIKey,
		CensorCharacter: cfg.CensorCharacter,
		Timeout:         cfg.Timeout,
		AttemptTimeout:  cfg.AttemptTimeout,
		Retry:           policy,
	}
}
