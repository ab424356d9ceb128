package cmd

import (
	"fmt"
	"os"

	"syncthat/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "syncthat",
	Short: "SyncThat keeps a room full of people listening to the same song.",
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
