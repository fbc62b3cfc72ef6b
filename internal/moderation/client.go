// Package moderation is the client for the external bad words provider that
// censors user submitted text before it is stored.
package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/oops"
)

const (
	maxResponseBytes      = 1 << 20
	defaultTimeout        = 10 * time.Second
	defaultAttemptTimeout = 3 * time.Second
	defaultCensorChar     = "*"
)

// Config configures a Client.
type Config struct {
	BaseURL         string
	APIKey          string
	CensorCharacter string
	// Timeout bounds a whole Check call, retries and backoff included.
	Timeout time.Duration
	// AttemptTimeout bounds a single HTTP attempt.
	AttemptTimeout time.Duration
	Retry          Policy
}

// BadWord is one match reported by the provider.
type BadWord struct {
	Original    string `json:"original"`
	Word        string `json:"word"`
	Deviations  int64  `json:"deviations"`
	Info        int64  `json:"info"`
	ReplacedLen int64  `json:"replacedLen"`
}

// Result is a successful provider reply.
type Result struct {
	Content         string
	BadWordsTotal   int64
	BadWords        []BadWord
	CensoredContent string
}

// Client calls the provider with bounded retries. It holds no mutable state
// and is safe for concurrent use.
type Client struct {
	endpoint       string
	apiKey         string
	httpClient     *http.Client
	timeout        time.Duration
	attemptTimeout time.Duration
	policy         Policy
	metrics        *Metrics
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport used for provider calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithMetrics records calls into m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New validates cfg and constructs a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("moderation api key is required")
	}
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid moderation base url %q", cfg.BaseURL)
	}

	censorChar := cfg.CensorCharacter
	if censorChar == "" {
		censorChar = defaultCensorChar
	}
	query := base.Query()
	query.Set("censor_character", censorChar)
	base.RawQuery = query.Encode()

	c := &Client{
		endpoint:       base.String(),
		apiKey:         cfg.APIKey,
		httpClient:     &http.Client{},
		timeout:        cfg.Timeout,
		attemptTimeout: cfg.AttemptTimeout,
		policy:         cfg.Retry,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.attemptTimeout <= 0 {
		c.attemptTimeout = defaultAttemptTimeout
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Censor returns text with profane spans masked by the provider.
func (c *Client) Censor(ctx context.Context, text string) (string, error) {
	result, err := c.Check(ctx, text)
	if err != nil {
		return "", err
	}
	return result.CensoredContent, nil
}

// Check sends text to the provider. Transport failures and 5xx replies are
// retried according to the policy; failures wrap ErrClient, ErrServer,
// ErrTransport or ErrSchema.
func (c *Client) Check(ctx context.Context, text string) (Result, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	log := zerolog.Ctx(ctx)
	attempts := 0

	var result Result
	err := Retry(ctx, c.policy, isRetryable, func(ctx context.Context, attempt int) error {
		attempts = attempt
		c.metrics.observeAttempt()

		res, err := c.attempt(ctx, text)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("moderation attempt failed")
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		if isContextError(err) && !errors.Is(err, ErrTransport) {
			err = fmt.Errorf("%w: %w", ErrTransport, err)
		}
		c.metrics.observeRequest(outcome(err), time.Since(start))
		return Result{}, oops.Code("MODERATION_FAILED").
			With("attempts", attempts).
			With("provider_status", providerStatus(err)).
			Wrap(err)
	}

	c.metrics.observeRequest(outcomeSuccess, time.Since(start))
	return result, nil
}

func (c *Client) attempt(ctx context.Context, text string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(text))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return Result{}, &APIError{Kind: ErrClient, Status: resp.StatusCode, Message: providerMessage(resp, body)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Result{}, &APIError{Kind: ErrServer, Status: resp.StatusCode, Message: providerMessage(resp, body)}
	}

	return decodeResult(body)
}

type badWordsResponse struct {
	Content         *string   `json:"content"`
	BadWordsTotal   *int64    `json:"bad_words_total"`
	BadWordsList    []BadWord `json:"bad_words_list"`
	CensoredContent *string   `json:"censored_content"`
}

func decodeResult(body []byte) (Result, error) {
	var parsed badWordsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrSchema, err)
	}
	if parsed.CensoredContent == nil || parsed.BadWordsTotal == nil {
		return Result{}, fmt.Errorf("%w: missing censored_content or bad_words_total", ErrSchema)
	}

	result := Result{
		BadWordsTotal:   *parsed.BadWordsTotal,
		BadWords:        parsed.BadWordsList,
		CensoredContent: *parsed.CensoredContent,
	}
	if parsed.Content != nil {
		result.Content = *parsed.Content
	}
	return result, nil
}

type providerError struct {
	Message string `json:"message"`
}

func providerMessage(resp *http.Response, body []byte) string {
	var parsed providerError
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" && len(trimmed) <= 256 {
		return trimmed
	}
	return http.StatusText(resp.StatusCode)
}

func isRetryable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrServer)
}

func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrClient):
		return outcomeClient
	case errors.Is(err, ErrServer):
		return outcomeServer
	case errors.Is(err, ErrSchema):
		return outcomeSchema
	default:
		return outcomeTransport
	}
}

func providerStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
