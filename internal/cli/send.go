package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/shineum/mailjet-relay/internal/email"
	"github.com/shineum/mailjet-relay/internal/mailjet"
	"github.com/shineum/mailjet-relay/internal/parser"
	"github.com/shineum/mailjet-relay/internal/provider"
)

// bulkSender is implemented by providers that deliver a batch in one call.
type bulkSender interface {
	BulkSend(ctx context.Context, msgs []*email.Message) (*provider.Result, error)
}

func newSendCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send FILE...",
		Short: "Deliver .eml files through the configured provider",
		Long: `Parse each RFC 5322 file ("-" reads stdin) and deliver it. Several files
go out as one batch when the provider supports it, otherwise one by one.
The command fails unless every delivery succeeds.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}

			msgs, err := parseFiles(cmd, args)
			if err != nil {
				return err
			}

			prov, err := buildProvider(cmd.Context(), cfg, logger, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			result, err := deliver(cmd.Context(), prov, msgs)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "provider=%s outcome=%s sent=%d status=%d\n",
				prov.Name(), result.Outcome, result.Sent, result.StatusCode)
			for _, r := range result.FailedRecipients {
				fmt.Fprintf(cmd.OutOrStdout(), "failed: %s\n", r)
			}
			if result.Outcome != provider.OutcomeSuccess {
				return fmt.Errorf("delivery %s", result.Outcome)
			}
			return nil
		},
	}
}

// deliver sends msgs as one batch when prov supports it, otherwise one at a
// time. Sequential results are merged: the first non-success outcome wins
// and failed recipients accumulate.
func deliver(ctx context.Context, prov provider.Provider, msgs []*email.Message) (*provider.Result, error) {
	if bs, ok := prov.(bulkSender); ok && len(msgs) > 1 {
		return bs.BulkSend(ctx, msgs)
	}

	merged := &provider.Result{Outcome: provider.OutcomeSuccess}
	for _, msg := range msgs {
		result, err := prov.Send(ctx, msg)
		if err != nil {
			return nil, err
		}
		merged.Sent += result.Sent
		merged.StatusCode = result.StatusCode
		merged.FailedRecipients = append(merged.FailedRecipients, result.FailedRecipients...)
		if merged.Outcome == provider.OutcomeSuccess {
			merged.Outcome = result.Outcome
		}
	}
	return merged, nil
}

func newPayloadCmd(opts *rootOptions) *cobra.Command {
	var version string

	cmd := &cobra.Command{
		Use:   "payload FILE...",
		Short: "Print the Send API request body for .eml files",
		Long: `Build the Mailjet Send API request body without sending it. One file
produces a single message body; several files produce a batch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if version == "" {
				version = cfg.Mailjet.Version
			}

			v, err := mailjet.ParseSchemaVersion(version)
			if err != nil {
				return err
			}
			builder, err := mailjet.NewBuilder(v, mailjet.BuilderOptions{
				LegacyRouting: mailjet.LegacyRouting(cfg.Mailjet.LegacyRouting),
			})
			if err != nil {
				return err
			}

			msgs, err := parseFiles(cmd, args)
			if err != nil {
				return err
			}
			payload, err := builder.Payload(msgs...)
			if err != nil {
				return fmt.Errorf("failed to build %s payload: %w", v, err)
			}
			return writeJSON(cmd.OutOrStdout(), payload)
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "payload schema (v3 or v3.1); defaults to mailjet.version")
	return cmd
}

func parseFiles(cmd *cobra.Command, paths []string) ([]*email.Message, error) {
	raws, err := readFiles(cmd, paths)
	if err != nil {
		return nil, err
	}
	msgs := make([]*email.Message, 0, len(raws))
	for i, raw := range raws {
		msg, err := parser.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", paths[i], err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
