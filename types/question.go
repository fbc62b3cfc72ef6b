package types

import "time"

// Question represents a question asked by an account.
type Question struct {
	// ID is the unique identifier of the question.
	ID int `json:"id" db:"id"`

	// Title is the moderated headline of the question.
	Title string `json:"title" db:"title"`

	// Content is the moderated body of the question.
	Content string `json:"content" db:"content"`

	// Tags are free-form labels associated with the question.
	Tags []string `json:"tags,omitempty" db:"tags"`

	// AccountID identifies the account that owns the question.
	AccountID int `json:"account_id" db:"account_id"`

	// CreatedAt is the timestamp at which the question was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// QuestionInput is the payload accepted when creating or updating a question.
type QuestionInput struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}
