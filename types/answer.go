package types

import "time"

// Answer represents an answer to a question.
type Answer struct {
	// ID is the unique identifier of the answer.
	ID int `json:"id" db:"id"`

	// Content is the moderated body of the answer.
	Content string `json:"content" db:"content"`

	// QuestionID identifies the question being answered.
	QuestionID int `json:"question_id" db:"corresponding_question"`

	// AccountID identifies the account that owns the answer.
	AccountID int `json:"account_id" db:"account_id"`

	// CreatedAt is the timestamp at which the answer was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AnswerInput is the payload accepted when creating or updating an answer.
// QuestionID is ignored on update.
type AnswerInput struct {
	Content    string `json:"content"`
	QuestionID int    `json:"question_id"`
}
