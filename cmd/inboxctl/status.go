package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openclaw/inbox-sync-go/internal/display"
	"github.com/openclaw/inbox-sync-go/internal/inbox"
)

var statusTimeout time.Duration

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"st"},
	Short:   "Load the session context, poll once and print inbox statuses",
	Long: `Load the session context for the token's user, run one status poll
of every available inbox and print the result.

Examples:
  inboxctl status
  inboxctl status --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
		defer cancel()

		s := newSession(nil, inbox.Config{PollEnabled: false})
		defer s.Close()

		if err := loadSession(ctx, s); err != nil {
			display.ErrorMsg("%v", err)
			return err
		}
		if err := s.PollNow(ctx); err != nil {
			// Statuses keep their backend values.
			log.Warn().Err(err).Msg("status poll failed")
		}

		view := s.Snapshot()
		if jsonOutput {
			return printJSON(view)
		}
		display.RenderView(os.Stdout, view)
		return nil
	},
}

func init() {
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 30*time.Second, "Overall timeout")
	rootCmd.AddCommand(statusCmd)
}
