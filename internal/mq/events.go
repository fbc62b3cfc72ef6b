package mq

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/qnahub/apiserver/types"
	"github.com/rs/zerolog"
	"github.com/samber/oops"
)

const (
	attrEventType = "event_type"
	attrAccountID = "account_id"
)

// ContentEvents publishes question and answer mutations on one channel.
type ContentEvents struct {
	mq      *MQ
	channel string
}

func NewContentEvents(mq *MQ, channel string) *ContentEvents {
	return &ContentEvents{mq: mq, channel: channel}
}

// PublishContentEvent encodes event as JSON and publishes it. The event type
// and account id are duplicated into message attributes for routing.
func (e *ContentEvents) PublishContentEvent(ctx context.Context, event types.ContentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return oops.Code("EVENT_ENCODE").Wrap(err)
	}

	_, err = e.mq.Publish(ctx, e.channel, data, map[string]string{
		attrEventType: string(event.Type),
		attrAccountID: strconv.Itoa(event.AccountID),
	})
	if err != nil {
		return oops.Code("EVENT_PUBLISH").
			With("channel", e.channel).
			With("event", string(event.Type)).
			Wrap(err)
	}
	return nil
}

// Tail hands every content event on the channel to fn until ctx is done.
// Messages that are not valid events are dropped.
func (e *ContentEvents) Tail(ctx context.Context, fn func(ctx context.Context, id string, event types.ContentEvent) error) error {
	return e.mq.Subscribe(ctx, e.channel, func(ctx context.Context, msg Message) error {
		event, err := DecodeContentEvent(msg)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("message_id", msg.ID).Msg("dropping malformed content event")
			return nil
		}
		return fn(ctx, msg.ID, event)
	})
}

// DecodeContentEvent parses a message produced by PublishContentEvent.
func DecodeContentEvent(msg Message) (types.ContentEvent, error) {
	var event types.ContentEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return types.ContentEvent{}, oops.Code("EVENT_DECODE").With("message_id", msg.ID).Wrap(err)
	}
	if event.Type == "" {
		return types.ContentEvent{}, oops.Code("EVENT_DECODE").With("message_id", msg.ID).Errorf("event type missing")
	}
	return event, nil
}
