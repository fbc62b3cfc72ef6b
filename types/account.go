package types

// Account represents a registered account.
type Account struct {
	// ID is the identifier assigned by storage on creation.
	// It is zero before the account is persisted.
	ID int `json:"id" db:"id"`

	// Email is the unique login name of the account, compared as stored.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the encoded password hash (algorithm, parameters,
	// salt and digest). This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password"`
}

// Credentials is the registration and login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
