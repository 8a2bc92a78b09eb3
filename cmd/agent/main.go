package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "signal-agent",
		Short: "Live signal dashboard client",
		Long: `signal-agent keeps a local mirror of the signals published by a
dashboard server over a websocket channel.

It logs in, opens the channel with the issued token, requests the full
signal list and then applies incremental updates. When the token is
refreshed the channel is handed off to a new one and the mirror is
rebuilt from a fresh snapshot.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		runCmd(),
		configCmd(),
		versionCmd(),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
