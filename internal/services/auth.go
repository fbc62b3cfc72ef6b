package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/qnahub/apiserver/internal/store"
	"github.com/qnahub/apiserver/types"
	"github.com/rs/zerolog"
	"github.com/samber/oops"
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	GetByEmail(ctx context.Context, email string) (types.Account, error)
	Create(ctx context.Context, account types.Account) (types.Account, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(ctx context.Context, password []byte) (string, error)
	Verify(ctx context.Context, encoded string, password []byte) (bool, error)
	NeedsRehash(encoded string) bool
}

// TokenIssuer turns an account identifier into an opaque session token.
type TokenIssuer interface {
	Issue(accountID int) (string, error)
}

// AuthService handles registration and login.
type AuthService struct {
	repo   AccountRepository
	hasher PasswordHasher
	tokens TokenIssuer
}

func NewAuthService(repo AccountRepository, hasher PasswordHasher, tokens TokenIssuer) *AuthService {
	return &AuthService{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
	}
}

// Register hashes the password and stores a new account.
func (s *AuthService) Register(ctx context.Context, creds types.Credentials) error {
	email := strings.TrimSpace(creds.Email)
	if email == "" || creds.Password == "" {
		return oops.Code("INVALID_CREDENTIALS_PAYLOAD").Wrap(ErrInvalidInput)
	}

	hash, err := s.hasher.Hash(ctx, []byte(creds.Password))
	if err != nil {
		return oops.Code("HASH_FAILED").Wrap(fmt.Errorf("%w: %w", ErrCannotHashPassword, err))
	}

	account, err := s.repo.Create(ctx, types.Account{
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return oops.Code("ACCOUNT_ALREADY_EXISTS").Wrap(fmt.Errorf("%w: %w", ErrAccountAlreadyExists, err))
		}
		return err
	}

	zerolog.Ctx(ctx).Info().Int("account_id", account.ID).Msg("account registered")
	return nil
}

// Login verifies the credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, creds types.Credentials) (string, error) {
	account, err := s.repo.GetByEmail(ctx, strings.TrimSpace(creds.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", oops.Code("ACCOUNT_NOT_FOUND").Wrap(ErrWrongPassword)
		}
		return "", err
	}

	ok, err := s.hasher.Verify(ctx, account.PasswordHash, []byte(creds.Password))
	if err != nil {
		return "", oops.Code("VERIFY_FAILED").With("account_id", account.ID).Wrap(err)
	}
	if !ok {
		return "", oops.Code("PASSWORD_MISMATCH").With("account_id", account.ID).Wrap(ErrWrongPassword)
	}

	// Accounts are never rewritten on login; outdated hashes are only reported.
	if s.hasher.NeedsRehash(account.PasswordHash) {
		zerolog.Ctx(ctx).Info().Int("account_id", account.ID).Bool("needs_rehash", true).Msg("password hash uses outdated parameters")
	}

	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		return "", oops.Code("TOKEN_ISSUE_FAILED").With("account_id", account.ID).Wrap(err)
	}
	return token, nil
}
