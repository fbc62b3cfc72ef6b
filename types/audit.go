package types

import "time"

// ModerationAudit records a piece of submitted text the moderation provider
// had to censor. The original text is not kept.
type ModerationAudit struct {
	AccountID       int       `json:"account_id"`
	Field           string    `json:"field"`
	BadWordsTotal   int64     `json:"bad_words_total"`
	BadWords        []string  `json:"bad_words"`
	CensoredContent string    `json:"censored_content"`
	RecordedAt      time.Time `json:"recorded_at"`
}
