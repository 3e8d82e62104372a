package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/shineum/mailjet-relay/internal/config"
	"github.com/shineum/mailjet-relay/internal/listener"
	"github.com/shineum/mailjet-relay/internal/mailjet"
	"github.com/shineum/mailjet-relay/internal/provider"
	"github.com/shineum/mailjet-relay/internal/provider/ses"
	"github.com/shineum/mailjet-relay/internal/provider/stdout"
)

// buildProvider chooses the delivery backend. An explicit provider setting
// wins; otherwise Mailjet is used when its credentials are set, then SES,
// then stdout. The stdout backend prints to out.
func buildProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (provider.Provider, error) {
	name := cfg.ResolveProvider()

	switch name {
	case config.ProviderMailjet:
		logger.Info("using Mailjet provider",
			"version", cfg.Mailjet.Version,
			"secured", cfg.Mailjet.IsSecured(),
			"call", cfg.Mailjet.CallEnabled(),
			"credentials", cfg.MailjetConfigured(),
		)
		return newMailjetTransport(cfg, logger)

	case config.ProviderSES:
		logger.Info("using AWS SES provider",
			"region", cfg.SES.Region,
			"sender", cfg.SES.Sender,
		)
		p, err := ses.New(ctx, ses.Config{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
			Sender:          cfg.SES.Sender,
			Logger:          logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SES provider: %w", err)
		}
		return p, nil

	case config.ProviderStdout:
		logger.Info("using stdout provider")
		return stdout.NewWithWriter(out), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// newMailjetTransport maps the configuration onto a Transport and binds the
// logging and domain policy listeners.
func newMailjetTransport(cfg *config.Config, logger *slog.Logger) (*mailjet.Transport, error) {
	mc := cfg.Mailjet

	version, err := mailjet.ParseSchemaVersion(mc.Version)
	if err != nil {
		return nil, err
	}

	tr, err := mailjet.New(mailjet.Config{
		APIKey:        mc.APIKey,
		APISecret:     mc.APISecret,
		Version:       version,
		LegacyRouting: mailjet.LegacyRouting(mc.LegacyRouting),
		Client: mailjet.ClientOptions{
			URL:      mc.URL,
			Insecure: !mc.IsSecured(),
			DryRun:   !mc.CallEnabled(),
			Timeout:  mc.Timeout,
		},
	}, mailjet.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create Mailjet transport: %w", err)
	}

	tr.RegisterPlugin(listener.NewLogging(logger))
	if len(cfg.Relay.AllowedDomains) > 0 {
		tr.RegisterPlugin(listener.NewDomainPolicy(cfg.Relay.AllowedDomains, logger))
	}
	return tr, nil
}
