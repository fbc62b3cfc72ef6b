//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/qnahub/apiserver/config"
	"github.com/qnahub/apiserver/internal/db"
	"github.com/qnahub/apiserver/internal/server"
	"github.com/qnahub/apiserver/types"
)

const serverPort = 18080

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("qna_test"),
		postgres.WithUsername("qna"),
		postgres.WithPassword("qna"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	dbConfig, err := containerConfig(ctx, container)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to inspect container: %v\n", err)
		_ = container.Terminate(context.Background())
		os.Exit(1)
	}

	if err := runMigrations(dbConfig); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = container.Terminate(context.Background())
		os.Exit(1)
	}

	provider := httptest.NewServer(http.HandlerFunc(maskingProvider))

	cfg := config.Config{
		ServerPort: serverPort,
		Database:   dbConfig,
		Auth: config.AuthConfig{
			TokenKey:      base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{3}, 32)),
			TokenTTL:      24 * time.Hour,
			MaxConcurrent: 2,
		},
		Moderation: config.ModerationConfig{
			BaseURL:           provider.URL + "/bad_words",
			APIKey:            "e2e-key",
			CensorCharacter:   "*",
			Timeout:           5 * time.Second,
			AttemptTimeout:    2 * time.Second,
			MaxRetries:        3,
			BaseDelay:         10 * time.Millisecond,
			BackoffMultiplier: 2,
			MaxDelay:          100 * time.Millisecond,
		},
	}

	srv, err := server.New(ctx, cfg, zerolog.New(os.Stderr).Level(zerolog.WarnLevel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		provider.Close()
		_ = container.Terminate(context.Background())
		os.Exit(1)
	}
	go func() {
		_ = srv.Start()
	}()

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		provider.Close()
		_ = container.Terminate(context.Background())
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	provider.Close()
	_ = container.Terminate(context.Background())
	os.Exit(code)
}

func TestRegistrationLoginAndModeratedQuestion(t *testing.T) {
	email := fmt.Sprintf("a_%d@x.com", time.Now().UnixNano())

	status, _ := call(t, http.MethodPost, "/registration", "", types.Credentials{Email: email, Password: "secret1"})
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(t, http.MethodPost, "/registration", "", types.Credentials{Email: email, Password: "other"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = call(t, http.MethodPost, "/login", "", types.Credentials{Email: email, Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)

	token := login(t, email, "secret1")

	status, body := call(t, http.MethodPost, "/questions", token, types.QuestionInput{
		Title:   "Grammar",
		Content: "This is a shitty sentence",
		Tags:    []string{"english"},
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	var created types.Question
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "This is a ****** sentence", created.Content)

	status, body = call(t, http.MethodGet, fmt.Sprintf("/questions/%d", created.ID), "", nil)
	require.Equal(t, http.StatusOK, status)
	var fetched types.Question
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, "This is a ****** sentence", fetched.Content)
	assert.Equal(t, []string{"english"}, fetched.Tags)
}

func TestOwnershipAgainstPostgres(t *testing.T) {
	suffix := time.Now().UnixNano()
	alice := register(t, fmt.Sprintf("alice_%d@x.com", suffix), "pw-alice")
	bob := register(t, fmt.Sprintf("bob_%d@x.com", suffix), "pw-bob")

	status, body := call(t, http.MethodPost, "/questions", alice, types.QuestionInput{Title: "t", Content: "c"})
	require.Equal(t, http.StatusCreated, status, string(body))
	var q types.Question
	require.NoError(t, json.Unmarshal(body, &q))
	path := fmt.Sprintf("/questions/%d", q.ID)

	status, _ = call(t, http.MethodPut, path, bob, types.QuestionInput{Title: "x", Content: "y"})
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = call(t, http.MethodDelete, path, bob, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = call(t, http.MethodPost, "/answers", bob, types.AnswerInput{Content: "answer", QuestionID: q.ID})
	require.Equal(t, http.StatusCreated, status, string(body))

	status, _ = call(t, http.MethodPost, "/answers", bob, types.AnswerInput{Content: "answer", QuestionID: q.ID + 100000})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, http.MethodDelete, path, alice, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = call(t, http.MethodGet, path+"/answers", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func maskingProvider(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("apikey") != "e2e-key" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid authentication credentials"}`))
		return
	}
	raw, _ := io.ReadAll(r.Body)
	text := string(raw)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"content":          text,
		"bad_words_total":  strings.Count(text, "shitty"),
		"bad_words_list":   []any{},
		"censored_content": strings.ReplaceAll(text, "shitty", "******"),
	})
}

func register(t *testing.T, email, password string) string {
	t.Helper()
	status, body := call(t, http.MethodPost, "/registration", "", types.Credentials{Email: email, Password: password})
	require.Equal(t, http.StatusOK, status, string(body))
	return login(t, email, password)
}

func login(t *testing.T, email, password string) string {
	t.Helper()
	status, body := call(t, http.MethodPost, "/login", "", types.Credentials{Email: email, Password: password})
	require.Equal(t, http.StatusOK, status, string(body))
	var token string
	require.NoError(t, json.Unmarshal(body, &token))
	return token
}

func call(t *testing.T, method, path, token string, payload any) (int, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, baseURL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func containerConfig(ctx context.Context, container *postgres.PostgresContainer) (config.DatabaseConfig, error) {
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return config.DatabaseConfig{}, err
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return config.DatabaseConfig{}, err
	}
	port, err := strconv.Atoi(parsed.Port())
	if err != nil {
		return config.DatabaseConfig{}, err
	}
	password, _ := parsed.User.Password()
	return config.DatabaseConfig{
		Host:     parsed.Hostname(),
		Port:     port,
		User:     parsed.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(parsed.Path, "/"),
	}, nil
}

func runMigrations(cfg config.DatabaseConfig) error {
	dir, err := filepath.Abs(filepath.Join("..", "..", "db", "migrations"))
	if err != nil {
		return err
	}
	migrator, err := migrate.New("file://"+dir, db.URL(cfg))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()
	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}
