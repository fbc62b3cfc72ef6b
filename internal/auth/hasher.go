// Package auth holds the credential and session primitives: password hashing,
// session token encryption and the request-scoped session.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const argon2idPrefix = "$argon2id$"

// Params defines the memory and CPU cost factors for Argon2id.
type Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams uses a 32 byte salt for every hash.
var DefaultParams = Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  32,
	KeyLength:   32,
}

// PasswordHasher hashes and verifies passwords with Argon2id. Hashes encoded
// by bcrypt are still verified so older accounts can log in.
//
// Each derivation allocates Params.Memory, so the number of concurrent
// derivations is bounded; callers waiting for a slot give up when their
// context is done.
type PasswordHasher struct {
	params Params
	slots  *semaphore.Weighted
}

// NewPasswordHasher returns a hasher allowing maxConcurrent derivations at once.
func NewPasswordHasher(params Params, maxConcurrent int64) *PasswordHasher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &PasswordHasher{
		params: params,
		slots:  semaphore.NewWeighted(maxConcurrent),
	}
}

// Hash derives a PHC encoded Argon2id hash with a fresh random salt:
// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>
func (h *PasswordHasher) Hash(ctx context.Context, password []byte) (string, error) {
	if len(password) == 0 {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	key := argon2.IDKey(password, salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
	h.slots.Release(1)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify re-derives the digest with the parameters embedded in encoded and
// compares in constant time. It returns (false, nil) on mismatch and an error
// wrapping ErrHashing only when encoded cannot be parsed.
func (h *PasswordHasher) Verify(ctx context.Context, encoded string, password []byte) (bool, error) {
	if isBcrypt(encoded) {
		return h.verifyBcrypt(ctx, encoded, password)
	}

	p, salt, expected, err := decodeArgon2id(encoded)
	if err != nil {
		return false, err
	}

	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, err
	}
	computed := argon2.IDKey(password, salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
	h.slots.Release(1)

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// NeedsRehash reports whether encoded was produced by something other than
// Argon2id with the current parameters.
func (h *PasswordHasher) NeedsRehash(encoded string) bool {
	p, _, _, err := decodeArgon2id(encoded)
	if err != nil {
		return true
	}
	return p.Memory != h.params.Memory ||
		p.Iterations != h.params.Iterations ||
		p.Parallelism != h.params.Parallelism
}

func (h *PasswordHasher) verifyBcrypt(ctx context.Context, encoded string, password []byte) (bool, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, err
	}
	err := bcrypt.CompareHashAndPassword([]byte(encoded), password)
	h.slots.Release(1)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, invalidHash("bcrypt: " + err.Error())
	}
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

func decodeArgon2id(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return Params{}, nil, nil, invalidHash("wrong number of segments")
	}
	if parts[1] != strings.Trim(argon2idPrefix, "$") {
		return Params{}, nil, nil, invalidHash("unsupported algorithm " + parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return Params{}, nil, nil, invalidHash("bad version segment")
	}
	if version != argon2.Version {
		return Params{}, nil, nil, invalidHash(fmt.Sprintf("incompatible version %d", version))
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return Params{}, nil, nil, invalidHash("bad parameter segment")
	}
	if memory == 0 || iterations == 0 || threads == 0 || threads > 255 {
		return Params{}, nil, nil, invalidHash("parameters out of range")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return Params{}, nil, nil, invalidHash("bad salt")
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 || len(key) > 1024 {
		return Params{}, nil, nil, invalidHash("bad digest")
	}

	return Params{
		Memory:      memory,
		Iterations:  iterations,
		Parallelism: uint8(threads),
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(key)),
	}, salt, key, nil
}

func invalidHash(reason string) error {
	return oops.Code("AUTH_INVALID_HASH").With("reason", reason).Wrap(ErrHashing)
}
