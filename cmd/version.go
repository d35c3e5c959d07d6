/*
Copyright © 2023 sanix-darker <s4nixd@gmail.com>
*/

package cmd

import (
	"github.com/sanix-darker/mrnotes/internal/cmd/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the application version.",
		Long:  `Print the application version with built/platform informations.`,
		// nothing to load
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			version.Print(cmd.OutOrStdout())
		},
	}
}
