// Command inboxctl drives an inbox session from a terminal: it loads the
// session context with a user's token, polls inbox statuses and prints them.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openclaw/inbox-sync-go/internal/backend"
	"github.com/openclaw/inbox-sync-go/internal/config"
	"github.com/openclaw/inbox-sync-go/internal/inbox"
	"github.com/openclaw/inbox-sync-go/internal/statusprovider"
	"github.com/openclaw/inbox-sync-go/internal/util"
)

var (
	backendURL  string
	providerURL string
	token       string
	jsonOutput  bool
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "inboxctl",
	Short: "Inspect inbox selection and connection status",
	Long: `inboxctl loads a console session context from the backend with a user's
token and reports the connection status of every inbox it can see.

Environment:
  BACKEND_URL           Backend base URL
  STATUS_PROVIDER_URL   Status provider base URL
  INBOX_TOKEN           User access token`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.WarnLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		zerolog.SetGlobalLevel(level)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

		if backendURL == "" {
			return fmt.Errorf("backend URL is required (--backend-url or BACKEND_URL)")
		}
		if providerURL == "" {
			return fmt.Errorf("status provider URL is required (--provider-url or STATUS_PROVIDER_URL)")
		}
		if token == "" {
			return fmt.Errorf("token is required (--token or INBOX_TOKEN)")
		}
		return nil
	},
}

// newSession builds a session that talks to the backend and provider as the
// token's user.
func newSession(notifier inbox.Notifier, cfg inbox.Config) *inbox.Session {
	user := backend.NewClient(backendURL, config.BackendRequestTimeout).ForToken(token)
	deps := inbox.Deps{
		Backend:    user,
		Selections: user,
		Provider:   statusprovider.NewClient(providerURL, config.ProviderRequestTimeout),
		Notifier:   notifier,
	}
	return inbox.NewSession("cli-"+util.HashToken(token)[:12], deps, cfg)
}

// loadSession starts s and fails on a critical load error.
func loadSession(ctx context.Context, s *inbox.Session) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	log.Debug().Str("sessionId", s.ID()).Msg("session context loaded")
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend-url", os.Getenv("BACKEND_URL"), "Backend base URL")
	rootCmd.PersistentFlags().StringVar(&providerURL, "provider-url", os.Getenv("STATUS_PROVIDER_URL"), "Status provider base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("INBOX_TOKEN"), "User access token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
