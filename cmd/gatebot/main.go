package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/gatebot/core/buildinfo"
)

const programName = "gatebot"

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Telegram gatekeeper for a members-only group",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRun()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config file (CONFIG_PATH wins when set)")

	rootCmd.AddCommand(
		serveCommand(),
		membersCommand(),
		migrateCommand(),
		versionCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), programName, buildinfo.String())
		},
	}
}
