package cmd

import (
	"fmt"

	"github.com/sanix-darker/mrnotes/internal/common"
	"github.com/sanix-darker/mrnotes/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd(conf *config.Config) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage mrnotes configuration",
	}

	configCmd.AddCommand(newConfigInitCmd(conf))
	configCmd.AddCommand(newConfigShowCmd(conf))
	return configCmd
}

func newConfigInitCmd(conf *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the config file at ~/.config/mrnotes/config.yml",
		Long: `Create the config file from the effective settings. The token is only
written with --with-token; prefer MRNOTES_TOKEN or a .env file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := conf.ConfigFile
			if cfgPath == "" {
				var err error
				if cfgPath, err = config.GetConfigFilePath(); err != nil {
					return err
				}
			}

			force, _ := cmd.Flags().GetBool("force")
			if common.FileExists(cfgPath) && !force {
				common.LogInfo(cmd.OutOrStdout(), fmt.Sprintf("Config file already exists at %s", cfgPath), nil)
				return nil
			}

			withToken, _ := cmd.Flags().GetBool("with-token")
			file := conf.ToFile(withToken)
			if !withToken {
				file.Token = ""
			}
			if err := config.WriteFile(cfgPath, file); err != nil {
				return err
			}
			common.LogInfo(cmd.OutOrStdout(), fmt.Sprintf("Config file created at %s", cfgPath), nil)
			return nil
		},
	}
	cmd.Flags().Bool("with-token", false, "store the token in the file")
	cmd.Flags().Bool("force", false, "replace an existing file")
	return cmd
}

func newConfigShowCmd(conf *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective config, token masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := conf.ToFile(false).Marshal()
			if err != nil {
				return err
			}
			if used := conf.Viper.ConfigFileUsed(); used != "" && common.FileExists(used) {
				fmt.Fprintf(cmd.OutOrStdout(), "# Config file: %s\n", used)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
