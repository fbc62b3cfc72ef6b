/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/qnahub/apiserver/config"
	"github.com/qnahub/apiserver/internal/logger"
	"github.com/qnahub/apiserver/internal/mq"
	"github.com/qnahub/apiserver/types"
	"github.com/spf13/cobra"
)

// eventsCmd represents the events command.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect content events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log every content event published on EVENTS_CHANNEL",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := logger.Setup(cfg.LogLevel, cfg.LogDev)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = log.WithContext(ctx)

		broker, err := mq.Open(ctx, cfg.Events)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("EVENTS_BACKEND is not set")
		}
		defer broker.Close()

		events := mq.NewContentEvents(broker, cfg.Events.Channel)
		log.Info().Str("channel", cfg.Events.Channel).Msg("tailing content events")

		err = events.Tail(ctx, func(ctx context.Context, id string, event types.ContentEvent) error {
			log.Info().
				Str("message_id", id).
				Str("type", string(event.Type)).
				Int("question_id", event.QuestionID).
				Int("answer_id", event.AnswerID).
				Int("account_id", event.AccountID).
				Time("occurred_at", event.OccurredAt).
				Msg("content event")
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
