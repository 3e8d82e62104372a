// Package cli wires configuration, providers and the SMTP intake into the
// mailjet-relay command line.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shineum/mailjet-relay/internal/config"
	"github.com/shineum/mailjet-relay/internal/logging"
)

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configFile string
	envFiles   []string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "mailjet-relay",
		Short: "Relay email to the Mailjet Send API",
		Long: `mailjet-relay accepts email over SMTP or from .eml files and delivers it
through the Mailjet Send API (v3 or v3.1), AWS SES, or standard output.

Example:
  mailjet-relay serve                      # Run the SMTP relay
  mailjet-relay send message.eml           # Deliver one message
  mailjet-relay payload message.eml        # Print the Send API request body`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "path to YAML configuration file (optional)")
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files loaded before reading the environment")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newSendCmd(opts))
	cmd.AddCommand(newPayloadCmd(opts))

	return cmd
}

// Execute runs the root command until it finishes or the process receives
// SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		return err
	}
	return nil
}

// load reads .env files, then the configuration, and installs the logger
// it describes. Logs go to stderr so command output stays clean.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return nil, nil, err
	}

	var (
		cfg *config.Config
		err error
	)
	if o.configFile != "" {
		cfg, err = config.LoadFromFile(o.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}

	logger := logging.Setup(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	return cfg, logger, nil
}

// readFiles reads every path, or stdin for "-".
func readFiles(cmd *cobra.Command, paths []string) ([][]byte, error) {
	out := make([][]byte, 0, len(paths))
	for _, p := range paths {
		var (
			data []byte
			err  error
		)
		if p == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(p)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}
