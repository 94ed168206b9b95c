package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loreworks/mwassist/internal/cli"
	"github.com/loreworks/mwassist/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mwassistd",
		Short: "MediaWiki assistant daemon and CLI",
		Long:  "Daemon for running the assistant API server and inspecting index and usage state",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.StatsCmd())
	rootCmd.AddCommand(admin.UsageCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
