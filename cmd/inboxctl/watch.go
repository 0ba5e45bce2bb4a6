package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openclaw/inbox-sync-go/internal/display"
	"github.com/openclaw/inbox-sync-go/internal/inbox"
	"github.com/openclaw/inbox-sync-go/internal/model"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll inbox statuses and print connection changes until interrupted",
	Long: `Keep a session open, poll inbox statuses on an interval and print a
line for every connection change of the active inbox.

Examples:
  inboxctl watch
  inboxctl watch --interval 10s --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := newNotificationPrinter(os.Stdout, jsonOutput)
		s := newSession(out, inbox.Config{PollInterval: watchInterval, PollEnabled: true})
		defer s.Close()

		if err := loadSession(ctx, s); err != nil {
			display.ErrorMsg("%v", err)
			return err
		}
		if !jsonOutput {
			display.RenderView(os.Stdout, s.Snapshot())
			fmt.Println()
			fmt.Println(display.Muted.Render(fmt.Sprintf("Watching every %s, Ctrl-C to stop", watchInterval)))
		}

		<-ctx.Done()
		return nil
	},
}

// notificationPrinter is the session notifier for the terminal.
type notificationPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	json bool
}

func newNotificationPrinter(w io.Writer, asJSON bool) *notificationPrinter {
	return &notificationPrinter{w: w, json: asJSON}
}

func (p *notificationPrinter) Notify(ctx context.Context, n model.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.json {
		_ = json.NewEncoder(p.w).Encode(n)
		return
	}
	display.RenderNotification(p.w, n)
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 30*time.Second, "Status poll interval")
	rootCmd.AddCommand(watchCmd)
}
