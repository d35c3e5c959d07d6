package cmd

import (
	"github.com/sanix-darker/mrnotes/internal/analysis"
	"github.com/sanix-darker/mrnotes/internal/config"
	"github.com/sanix-darker/mrnotes/internal/server"
	"github.com/sanix-darker/mrnotes/internal/vcs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newServeCmd(conf *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve analysis and export over HTTP",
		Long: `Start the HTTP backend of the web front end. Each analysis request carries
its GitLab URL, project and token; exports are computed from the aggregate sent back
by the client. Paging, timeout and retry settings come from the configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			log := newLogger(conf, zapcore.InfoLevel)
			defer func() { _ = log.Sync() }()

			srv := server.New(server.Options{
				NewClient: serverClientFactory(conf, log),
				Workers:   conf.Workers,
				Logger:    log,
			})
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	return cmd
}

func serverClientFactory(conf *config.Config, log *zap.Logger) server.ClientFactory {
	return func(cfg analysis.Config) (vcs.Client, error) {
		opts := conf.ClientOptions(log)
		opts.BaseURL = cfg.BaseURL
		opts.ProjectID = cfg.ProjectID
		opts.Token = cfg.Token
		return newGitLabClient(opts)
	}
}
