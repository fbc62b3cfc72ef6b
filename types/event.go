package types

import "time"

// ContentEventType names a mutation of user content.
type ContentEventType string

const (
	QuestionCreated ContentEventType = "question.created"
	QuestionUpdated ContentEventType = "question.updated"
	QuestionDeleted ContentEventType = "question.deleted"
	AnswerCreated   ContentEventType = "answer.created"
	AnswerUpdated   ContentEventType = "answer.updated"
	AnswerDeleted   ContentEventType = "answer.deleted"
)

// ContentEvent is published after a question or answer has been persisted.
type ContentEvent struct {
	Type       ContentEventType `json:"type"`
	QuestionID int              `json:"question_id"`
	AnswerID   int              `json:"answer_id,omitempty"`
	AccountID  int              `json:"account_id"`
	OccurredAt time.Time        `json:"occurred_at"`
}
