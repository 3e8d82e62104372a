package cli

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shineum/mailjet-relay/internal/metrics"
	"github.com/shineum/mailjet-relay/internal/smtp"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the SMTP relay",
		Long: `Accept mail over SMTP and deliver every message through the configured
provider. A /metrics endpoint is served when metrics.listen is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			prov, err := buildProvider(ctx, cfg, logger, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			prov = metrics.Instrument(prov, metrics.NewRecorder(reg))

			server := smtp.New(smtp.ServerConfig{
				ListenAddr:     cfg.SMTP.Listen,
				Hostname:       cfg.SMTP.Hostname,
				Provider:       prov,
				AuthUsername:   cfg.SMTP.Username,
				AuthPassword:   cfg.SMTP.Password,
				MaxMessageSize: cfg.SMTP.MaxMessageSize,
				Logger:         logger,
			})

			logger.Info("starting mailjet-relay",
				"listen", cfg.SMTP.Listen,
				"provider", prov.Name(),
				"auth_enabled", cfg.AuthEnabled(),
				"metrics_listen", cfg.Metrics.Listen,
			)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.ListenAndServe(gctx)
			})
			if cfg.Metrics.Listen != "" {
				g.Go(func() error {
					return metrics.Serve(gctx, cfg.Metrics.Listen, reg)
				})
			}

			if err := g.Wait(); err != nil {
				return err
			}
			logger.Info("mailjet-relay stopped")
			return nil
		},
	}
}
