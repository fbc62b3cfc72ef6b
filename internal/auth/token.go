package auth

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// DefaultTokenTTL is the validity window of an issued session.
	DefaultTokenTTL = 24 * time.Hour

	// tokenHeader prefixes every token and is bound to the ciphertext as
	// additional data.
	tokenHeader = "qna.v1.local."
	tokenIssuer = "qna-apiserver"
)

var tokenEncoding = base64.RawURLEncoding.Strict()

// Claims is the encrypted payload of a session token. The registered numeric
// dates only carry whole seconds, so Issued and Expires keep the exact
// window and the registered dates widen it to the enclosing seconds.
type Claims struct {
	AccountID int       `json:"account_id"`
	Issued    time.Time `json:"issued"`
	Expires   time.Time `json:"expires"`
	jwt.RegisteredClaims
}

// Session is the decoded, time-bounded identity of an authenticated account.
// It lives for one request and is never persisted.
type Session struct {
	AccountID int
	TokenID   string
	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time
}

// TokenCodec issues and decodes XChaCha20-Poly1305 encrypted session tokens.
// The key is fixed at construction and the codec is safe for concurrent use.
type TokenCodec struct {
	aead      cipher.AEAD
	ttl       time.Duration
	now       func() time.Time
	validator *jwt.Validator
}

// TokenOption customizes a TokenCodec.
type TokenOption func(*TokenCodec)

// WithClock replaces time.Now for issuing and validating tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

// NewTokenCodec constructs a codec from a 32 byte key. A non-positive ttl
// falls back to DefaultTokenTTL.
func NewTokenCodec(key []byte, ttl time.Duration, opts ...TokenOption) (*TokenCodec, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("token key: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	c := &TokenCodec{
		aead: aead,
		ttl:  ttl,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.validator = jwt.NewValidator(
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(tokenIssuer),
	)
	return c, nil
}

// ParseKey accepts a key given either as exactly 32 raw bytes or as base64
// (standard or URL alphabet) of 32 bytes.
func ParseKey(raw string) ([]byte, error) {
	if len(raw) == chacha20poly1305.KeySize {
		return []byte(raw), nil
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		key, err := enc.DecodeString(raw)
		if err == nil && len(key) == chacha20poly1305.KeySize {
			return key, nil
		}
	}
	return nil, fmt.Errorf("token key must be %d bytes, raw or base64 encoded", chacha20poly1305.KeySize)
}

// Issue encrypts a fresh claim set for accountID.
func (c *TokenCodec) Issue(accountID int) (string, error) {
	now := c.now().UTC()
	expires := now.Add(c.ttl)
	claims := Claims{
		AccountID: accountID,
		Issued:    now,
		Expires:   expires,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(ceilSecond(expires)),
		},
	}

	plaintext, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", oops.Code("AUTH_NONCE_FAILED").Wrap(err)
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, []byte(tokenHeader))

	return tokenHeader + tokenEncoding.EncodeToString(sealed), nil
}

// Decode authenticates and decrypts token and validates its time window.
// Every failure wraps ErrCannotDecryptToken; the reason is only attached as
// error context for logging.
func (c *TokenCodec) Decode(token string) (Session, error) {
	body, ok := strings.CutPrefix(token, tokenHeader)
	if !ok {
		return Session{}, decryptFailure("missing header")
	}

	sealed, err := tokenEncoding.DecodeString(body)
	if err != nil {
		return Session{}, decryptFailure("malformed encoding")
	}
	if len(sealed) < c.aead.NonceSize()+c.aead.Overhead() {
		return Session{}, decryptFailure("too short")
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, []byte(tokenHeader))
	if err != nil {
		return Session{}, decryptFailure("authentication failed")
	}

	var claims Claims
	if err := json.Unmarshal(plaintext, &claims); err != nil {
		return Session{}, decryptFailure("malformed claims")
	}
	if err := c.validator.Validate(claims); err != nil {
		return Session{}, decryptFailure(validationReason(err))
	}
	if claims.AccountID < 1 || claims.NotBefore == nil || claims.IssuedAt == nil ||
		claims.Issued.IsZero() || !claims.Expires.After(claims.Issued) {
		return Session{}, decryptFailure("incomplete claims")
	}

	session := Session{
		AccountID: claims.AccountID,
		TokenID:   claims.ID,
		IssuedAt:  claims.Issued,
		NotBefore: claims.Issued,
		ExpiresAt: claims.Expires,
	}
	if now := c.now(); !session.ValidAt(now) {
		if now.Before(session.NotBefore) {
			return Session{}, decryptFailure("not valid yet")
		}
		return Session{}, decryptFailure("expired")
	}
	return session, nil
}

func ceilSecond(t time.Time) time.Time {
	if truncated := t.Truncate(time.Second); !truncated.Equal(t) {
		return truncated.Add(time.Second)
	}
	return t
}

func validationReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "not valid yet"
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return "used before issued"
	default:
		return "invalid claims"
	}
}

func decryptFailure(reason string) error {
	return oops.Code("AUTH_CANNOT_DECRYPT_TOKEN").With("reason", reason).Wrap(ErrCannotDecryptToken)
}
