package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qnahub/apiserver/internal/auth"
	"github.com/qnahub/apiserver/internal/moderation"
	"github.com/qnahub/apiserver/internal/services"
	"github.com/qnahub/apiserver/internal/store"
)

var testKey = bytes.Repeat([]byte{7}, 32)

func newCodec(t *testing.T) *auth.TokenCodec {
	t.Helper()
	codec, err := auth.NewTokenCodec(testKey, auth.DefaultTokenTTL)
	require.NoError(t, err)
	return codec
}

// probe records whether the protected handler ran.
type probe struct {
	called  bool
	session auth.Session
}

func (p *probe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.called = true
	p.session, _ = auth.SessionFromContext(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	p := &probe{}
	handler := RequireAuth(newCodec(t))(p)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/questions", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, p.called)
}

func TestRequireAuthRejectsBadTokens(t *testing.T) {
	codec := newCodec(t)
	other, err := auth.NewTokenCodec(bytes.Repeat([]byte{9}, 32), auth.DefaultTokenTTL)
	require.NoError(t, err)
	foreign, err := other.Issue(1)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"garbage":     "not-a-token",
		"bearer only": "Bearer ",
		"other key":   foreign,
	} {
		t.Run(name, func(t *testing.T) {
			p := &probe{}
			req := httptest.NewRequest(http.MethodPost, "/questions", nil)
			req.Header.Set("Authorization", header)

			rec := httptest.NewRecorder()
			RequireAuth(codec)(p).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, p.called)
		})
	}
}

func TestRequireAuthInjectsSession(t *testing.T) {
	codec := newCodec(t)
	token, err := codec.Issue(42)
	require.NoError(t, err)

	for _, header := range []string{token, "Bearer " + token} {
		p := &probe{}
		req := httptest.NewRequest(http.MethodPost, "/questions", nil)
		req.Header.Set("Authorization", header)

		rec := httptest.NewRecorder()
		RequireAuth(codec)(p).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.True(t, p.called)
		assert.Equal(t, 42, p.session.AccountID)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{oops.Wrap(services.ErrWrongPassword), http.StatusUnauthorized},
		{oops.Code("X").Wrap(auth.ErrCannotDecryptToken), http.StatusUnauthorized},
		{services.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("%w: %w", services.ErrAccountAlreadyExists, store.ErrAlreadyExists), http.StatusUnprocessableEntity},
		{services.ErrInvalidInput, http.StatusUnprocessableEntity},
		{oops.Code("HASH_FAILED").Wrap(fmt.Errorf("%w: %w", services.ErrCannotHashPassword, context.Canceled)), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: eof", errMalformedBody), http.StatusUnprocessableEntity},
		{store.ErrNotFound, http.StatusNotFound},
		{store.ErrPersistence, http.StatusUnprocessableEntity},
		{auth.ErrHashing, http.StatusInternalServerError},
		{&moderation.APIError{Kind: moderation.ErrClient, Status: 401, Message: "bad key"}, http.StatusInternalServerError},
		{moderation.ErrTransport, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, message := classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.NotContains(t, message, "bad key")
	}
}

func TestDecodeJSONRejectsMalformedBodies(t *testing.T) {
	for _, body := range []string{``, `{`, `{"email":"a"} trailing`, `[1,2]`} {
		var dst struct {
			Email string `json:"email"`
		}
		rec := httptest.NewRecorder()
		err := decodeJSON(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), &dst)
		assert.ErrorIs(t, err, errMalformedBody, body)
	}
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/questions?page=3&limit=500", nil)
	page, limit, offset, err := parsePagination(req)
	require.NoError(t, err)
	assert.Equal(t, 3, page)
	assert.Equal(t, maxLimit, limit)
	assert.Equal(t, 200, offset)

	_, _, _, err = parsePagination(httptest.NewRequest(http.MethodGet, "/questions?page=0", nil))
	assert.Error(t, err)

	_, _, _, err = parsePagination(httptest.NewRequest(http.MethodGet, "/questions?page=9223372036854775807&limit=100", nil))
	assert.Error(t, err)

	page, limit, offset, err = parsePagination(httptest.NewRequest(http.MethodGet, "/questions?page=21474837&limit=100", nil))
	require.NoError(t, err)
	assert.Equal(t, 21474837, page)
	assert.Equal(t, 100, limit)
	assert.Equal(t, 2147483600, offset)
}

func TestNotFoundIsJSON(t *testing.T) {
	r := chi.NewRouter()
	r.NotFound(NotFound)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Route not found"}`, rec.Body.String())
}
