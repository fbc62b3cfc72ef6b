package services

import (
	"context"
	"time"

	"github.com/qnahub/apiserver/internal/moderation"
	"github.com/qnahub/apiserver/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Moderator censors user submitted text.
type Moderator interface {
	Check(ctx context.Context, text string) (moderation.Result, error)
}

// EventPublisher announces content mutations to other services.
type EventPublisher interface {
	PublishContentEvent(ctx context.Context, event types.ContentEvent) error
}

// AuditRecorder archives moderation hits.
type AuditRecorder interface {
	Record(ctx context.Context, audit types.ModerationAudit) error
}

// ContentOption configures the optional side channels of the question and
// answer services.
type ContentOption func(*contentPipeline)

// WithEvents publishes a ContentEvent after every successful mutation.
func WithEvents(events EventPublisher) ContentOption {
	return func(p *contentPipeline) {
		p.events = events
	}
}

// WithAudit archives a ModerationAudit whenever the provider censored text.
func WithAudit(audit AuditRecorder) ContentOption {
	return func(p *contentPipeline) {
		p.audit = audit
	}
}

// WithClock overrides the time source used for events and audit records.
func WithClock(now func() time.Time) ContentOption {
	return func(p *contentPipeline) {
		p.now = now
	}
}

type contentPipeline struct {
	moderator Moderator
	events    EventPublisher
	audit     AuditRecorder
	now       func() time.Time
}

func newContentPipeline(moderator Moderator, opts []ContentOption) contentPipeline {
	p := contentPipeline{
		moderator: moderator,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// field is a piece of user text to moderate; the censored result is written
// back through text.
type field struct {
	name string
	text *string
}

// moderate checks every field in parallel. Either all fields are replaced
// with their censored text or none are.
func (p contentPipeline) moderate(ctx context.Context, accountID int, fields ...field) error {
	results := make([]moderation.Result, len(fields))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range fields {
		g.Go(func() error {
			result, err := p.moderator.Check(gctx, *f.text)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, f := range fields {
		*f.text = results[i].CensoredContent
		if results[i].BadWordsTotal > 0 {
			p.recordAudit(ctx, accountID, f.name, results[i])
		}
	}
	return nil
}

func (p contentPipeline) recordAudit(ctx context.Context, accountID int, name string, result moderation.Result) {
	if p.audit == nil {
		return
	}

	words := make([]string, 0, len(result.BadWords))
	for _, w := range result.BadWords {
		words = append(words, w.Word)
	}

	err := p.audit.Record(ctx, types.ModerationAudit{
		AccountID:       accountID,
		Field:           name,
		BadWordsTotal:   result.BadWordsTotal,
		BadWords:        words,
		CensoredContent: result.CensoredContent,
		RecordedAt:      p.now().UTC(),
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("field", name).Msg("failed to archive moderation audit")
	}
}

func (p contentPipeline) publish(ctx context.Context, event types.ContentEvent) {
	if p.events == nil {
		return
	}
	event.OccurredAt = p.now().UTC()
	if err := p.events.PublishContentEvent(ctx, event); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("event", string(event.Type)).Msg("failed to publish content event")
	}
}
