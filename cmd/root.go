/*
Copyright © 2023 sanix-darker <s4nixd@gmail.com>

*/

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sanix-darker/mrnotes/internal/common"
	"github.com/sanix-darker/mrnotes/internal/config"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree around conf. Every sub command reads
// its settings from conf once the persistent flags are parsed.
func NewRootCmd(conf *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mrnotes",
		Short: "GitLab merge request comments in your terminal.",
		Long: `Collect the review comments of labeled GitLab merge requests, group them
by merge request and code line, and export them as Markdown or CSV.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return conf.Load()
		},
	}
	rootCmd.SetIn(conf.InReader)
	rootCmd.SetOut(conf.OutWriter)
	rootCmd.SetErr(conf.ErrWriter)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&conf.ConfigFile, "config", "", "config file (default is $HOME/.config/mrnotes/config.yml)")
	flags.Bool("debug", false, "print diagnostics on stderr")
	flags.String("gitlab-url", conf.GitLabURL, "GitLab instance URL")
	flags.StringP("project", "p", "", "project id or path (namespace/project)")
	flags.String("token", "", "GitLab private token (prefer MRNOTES_TOKEN)")
	flags.Int("per-page", conf.PerPage, "page size of GitLab list requests")
	flags.Int("workers", conf.Workers, "merge requests fetched concurrently")
	flags.Duration("timeout", conf.Timeout, "timeout of one GitLab request")
	flags.Int("max-retries", conf.Retry.MaxRetries, "retries of a failed GitLab request")
	flags.Bool("general", conf.IncludeGeneral, "include comments not tied to a code line")

	bindFlags(conf, flags, map[string]string{
		config.KeyDebug:      "debug",
		config.KeyGitLabURL:  "gitlab-url",
		config.KeyProjectID:  "project",
		config.KeyToken:      "token",
		config.KeyPerPage:    "per-page",
		config.KeyWorkers:    "workers",
		config.KeyTimeout:    "timeout",
		config.KeyMaxRetries: "max-retries",
		config.KeyGeneral:    "general",
	})

	rootCmd.AddCommand(
		newRunCmd(conf),
		newExportCmd(conf),
		newServeCmd(conf),
		newConfigCmd(conf),
		newManCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute builds the root command with the default configuration and runs it.
// This is called by main.main(). Interrupting the process cancels the command.
func Execute() {
	conf := config.NewDefaultConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd(&conf).ExecuteContext(ctx)
	stop()
	if err != nil {
		common.LogError(conf.ErrWriter, fmt.Sprintf("[x] %v", err))
		os.Exit(1)
	}
}
