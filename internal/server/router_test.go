package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qnahub/apiserver/internal/auth"
	"github.com/qnahub/apiserver/internal/moderation"
	"github.com/qnahub/apiserver/internal/services"
	"github.com/qnahub/apiserver/internal/store"
	"github.com/qnahub/apiserver/types"
)

// memoryDB stands in for Postgres and enforces the same uniqueness and
// ownership predicates the SQL statements do.
type memoryDB struct {
	mu        sync.Mutex
	accounts  map[string]types.Account
	questions map[int]types.Question
	answers   map[int]types.Answer
	nextID    int
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		accounts:  map[string]types.Account{},
		questions: map[int]types.Question{},
		answers:   map[int]types.Answer{},
	}
}

func (m *memoryDB) question(id int) types.Question {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.questions[id]
}

func (m *memoryDB) id() int {
	m.nextID++
	return m.nextID
}

type memoryAccounts struct{ *memoryDB }

func (m memoryAccounts) GetByEmail(_ context.Context, email string) (types.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[email]
	if !ok {
		return types.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (m memoryAccounts) Create(_ context.Context, a types.Account) (types.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[a.Email]; ok {
		return types.Account{}, store.ErrAlreadyExists
	}
	a.ID = m.id()
	m.accounts[a.Email] = a
	return a, nil
}

type memoryQuestions struct{ *memoryDB }

func (m memoryQuestions) List(_ context.Context, offset, limit int) ([]types.Question, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Question, 0, len(m.questions))
	for id := 1; id <= m.nextID; id++ {
		if q, ok := m.questions[id]; ok {
			out = append(out, q)
		}
	}
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (m memoryQuestions) Get(_ context.Context, id int) (types.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return types.Question{}, store.ErrNotFound
	}
	return q, nil
}

func (m memoryQuestions) Create(_ context.Context, q types.Question, accountID int) (types.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q.ID = m.id()
	q.AccountID = accountID
	q.CreatedAt = time.Now().UTC()
	m.questions[q.ID] = q
	return q, nil
}

func (m memoryQuestions) Update(_ context.Context, q types.Question, accountID int) (types.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.questions[q.ID]
	if !ok || existing.AccountID != accountID {
		return types.Question{}, store.ErrNotFound
	}
	q.AccountID = accountID
	q.CreatedAt = existing.CreatedAt
	m.questions[q.ID] = q
	return q, nil
}

func (m memoryQuestions) Delete(_ context.Context, id, accountID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.questions[id]
	if !ok || existing.AccountID != accountID {
		return store.ErrNotFound
	}
	delete(m.questions, id)
	return nil
}

func (m memoryQuestions) IsOwner(_ context.Context, id, accountID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	return ok && q.AccountID == accountID, nil
}

type memoryAnswers struct{ *memoryDB }

func (m memoryAnswers) ListByQuestion(_ context.Context, questionID int) ([]types.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []types.Answer{}
	for id := 1; id <= m.nextID; id++ {
		if a, ok := m.answers[id]; ok && a.QuestionID == questionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m memoryAnswers) Create(_ context.Context, a types.Answer, accountID int) (types.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[a.QuestionID]; !ok {
		return types.Answer{}, store.ErrNotFound
	}
	a.ID = m.id()
	a.AccountID = accountID
	m.answers[a.ID] = a
	return a, nil
}

func (m memoryAnswers) Update(_ context.Context, a types.Answer, accountID int) (types.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.answers[a.ID]
	if !ok || existing.AccountID != accountID {
		return types.Answer{}, store.ErrNotFound
	}
	existing.Content = a.Content
	m.answers[a.ID] = existing
	return existing, nil
}

func (m memoryAnswers) Delete(_ context.Context, id, accountID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.answers[id]
	if !ok || existing.AccountID != accountID {
		return store.ErrNotFound
	}
	delete(m.answers, id)
	return nil
}

func (m memoryAnswers) IsOwner(_ context.Context, id, accountID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.answers[id]
	return ok && a.AccountID == accountID, nil
}

// maskingProvider mimics the bad words API and masks "shitty".
func maskingProvider(calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("apikey") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid authentication credentials"}`))
			return
		}
		raw, _ := io.ReadAll(r.Body)
		text := string(raw)
		censored := strings.ReplaceAll(text, "shitty", "******")
		total := strings.Count(text, "shitty")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content":          text,
			"bad_words_total":  total,
			"bad_words_list":   []any{},
			"censored_content": censored,
		})
	}
}

type harness struct {
	api           *httptest.Server
	db            *memoryDB
	providerCalls *atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	calls := &atomic.Int32{}
	provider := httptest.NewServer(maskingProvider(calls))
	t.Cleanup(provider.Close)

	registry := prometheus.NewRegistry()
	moderator, err := moderation.New(moderation.Config{
		BaseURL:        provider.URL + "/bad_words",
		APIKey:         "test-key",
		Timeout:        2 * time.Second,
		AttemptTimeout: time.Second,
		Retry:          moderation.Policy{MaxRetries: 1, BaseDelay: time.Millisecond, Multiplier: 2},
	}, moderation.WithHTTPClient(provider.Client()), moderation.WithMetrics(moderation.NewMetrics(registry)))
	require.NoError(t, err)

	tokens, err := auth.NewTokenCodec(bytes.Repeat([]byte{1}, 32), auth.DefaultTokenTTL)
	require.NoError(t, err)
	hasher := auth.NewPasswordHasher(auth.Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 32, KeyLength: 32}, 2)

	db := newMemoryDB()
	questions := memoryQuestions{db}
	router := NewRouter(Dependencies{
		Logger:    zerolog.Nop(),
		Auth:      services.NewAuthService(memoryAccounts{db}, hasher, tokens),
		Questions: services.NewQuestionService(questions, moderator),
		Answers:   services.NewAnswerService(memoryAnswers{db}, questions, moderator),
		Tokens:    tokens,
		Gatherer:  registry,
	})

	api := httptest.NewServer(router)
	t.Cleanup(api.Close)

	return &harness{api: api, db: db, providerCalls: calls}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, h.api.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := h.api.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (h *harness) login(t *testing.T, email, password string) string {
	t.Helper()
	status, body := h.do(t, http.MethodPost, "/registration", "", types.Credentials{Email: email, Password: password})
	require.Equal(t, http.StatusOK, status, string(body))
	status, body = h.do(t, http.MethodPost, "/login", "", types.Credentials{Email: email, Password: password})
	require.Equal(t, http.StatusOK, status, string(body))
	var token string
	require.NoError(t, json.Unmarshal(body, &token))
	return token
}

func TestRegisterLoginAndModeratedQuestion(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, http.MethodPost, "/registration", "", types.Credentials{Email: "a@x.com", Password: "secret1"})
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"message":"Account created"}`, string(body))

	status, _ = h.do(t, http.MethodPost, "/registration", "", types.Credentials{Email: "a@x.com", Password: "other"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = h.do(t, http.MethodPost, "/login", "", types.Credentials{Email: "a@x.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, unknownBody := h.do(t, http.MethodPost, "/login", "", types.Credentials{Email: "b@x.com", Password: "secret1"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, wrongBody := h.do(t, http.MethodPost, "/login", "", types.Credentials{Email: "a@x.com", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, string(wrongBody), string(unknownBody))

	status, body = h.do(t, http.MethodPost, "/login", "", types.Credentials{Email: "a@x.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, status)
	var token string
	require.NoError(t, json.Unmarshal(body, &token))
	require.NotEmpty(t, token)

	status, body = h.do(t, http.MethodPost, "/questions", token, types.QuestionInput{
		Title:   "Language question",
		Content: "This is a shitty sentence",
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	var created types.Question
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "This is a ****** sentence", created.Content)

	stored := h.db.question(created.ID)
	assert.Equal(t, "This is a ****** sentence", stored.Content)
	assert.Equal(t, created.AccountID, stored.AccountID)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newHarness(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/questions"},
		{http.MethodPut, "/questions/1"},
		{http.MethodDelete, "/questions/1"},
		{http.MethodPost, "/answers"},
		{http.MethodPut, "/answers/1"},
		{http.MethodDelete, "/answers/1"},
	} {
		status, _ := h.do(t, tc.method, tc.path, "", map[string]string{"title": "t", "content": "c"})
		assert.Equal(t, http.StatusUnauthorized, status, tc.method+" "+tc.path)

		status, _ = h.do(t, tc.method, tc.path, "tampered", map[string]string{"title": "t", "content": "c"})
		assert.Equal(t, http.StatusUnauthorized, status, tc.method+" "+tc.path)
	}

	assert.Zero(t, h.providerCalls.Load())
	assert.Zero(t, h.db.question(1).ID)
}

func TestOwnershipIsEnforced(t *testing.T) {
	h := newHarness(t)
	alice := h.login(t, "alice@x.com", "pw-alice")
	bob := h.login(t, "bob@x.com", "pw-bob")

	status, body := h.do(t, http.MethodPost, "/questions", alice, types.QuestionInput{Title: "t", Content: "c"})
	require.Equal(t, http.StatusCreated, status)
	var q types.Question
	require.NoError(t, json.Unmarshal(body, &q))
	path := "/questions/" + strconv.Itoa(q.ID)

	callsBefore := h.providerCalls.Load()
	status, _ = h.do(t, http.MethodPut, path, bob, types.QuestionInput{Title: "mine", Content: "now"})
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = h.do(t, http.MethodDelete, path, bob, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, callsBefore, h.providerCalls.Load())
	assert.Equal(t, "c", h.db.question(q.ID).Content)

	status, body = h.do(t, http.MethodPost, "/answers", bob, types.AnswerInput{Content: "shitty answer", QuestionID: q.ID})
	require.Equal(t, http.StatusCreated, status, string(body))
	var a types.Answer
	require.NoError(t, json.Unmarshal(body, &a))
	assert.Equal(t, "****** answer", a.Content)

	status, _ = h.do(t, http.MethodPut, "/answers/"+strconv.Itoa(a.ID), alice, types.AnswerInput{Content: "edited"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = h.do(t, http.MethodGet, path+"/answers", "", nil)
	require.Equal(t, http.StatusOK, status)
	var answers []types.Answer
	require.NoError(t, json.Unmarshal(body, &answers))
	require.Len(t, answers, 1)
	assert.Equal(t, "****** answer", answers[0].Content)

	status, _ = h.do(t, http.MethodPut, path, alice, types.QuestionInput{Title: "t2", Content: "c2"})
	assert.Equal(t, http.StatusOK, status)
	status, _ = h.do(t, http.MethodDelete, path, alice, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = h.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAnswerToUnknownQuestion(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, "a@x.com", "secret1")

	status, _ := h.do(t, http.MethodPost, "/answers", token, types.AnswerInput{Content: "hi", QuestionID: 999})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListingAndOperationalRoutes(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, "a@x.com", "secret1")

	for i := 0; i < 3; i++ {
		status, _ := h.do(t, http.MethodPost, "/questions", token, types.QuestionInput{Title: "t", Content: "c"})
		require.Equal(t, http.StatusCreated, status)
	}

	status, body := h.do(t, http.MethodGet, "/questions?page=2&limit=2", "", nil)
	require.Equal(t, http.StatusOK, status)
	var page struct {
		Items []types.Question `json:"items"`
		Total int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 1)

	status, _ = h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = h.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "qna_moderation_requests_total")

	status, body = h.do(t, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.JSONEq(t, `{"error":"Route not found"}`, string(body))
}

func TestMalformedBodyIsUnprocessable(t *testing.T) {
	h := newHarness(t)

	req, err := http.NewRequest(http.MethodPost, h.api.URL+"/registration", strings.NewReader(`{"email":`))
	require.NoError(t, err)
	resp, err := h.api.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}
