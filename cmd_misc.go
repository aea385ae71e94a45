package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/yourusername/jejecipher/internal/wizard"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard that writes .env",
	RunE: func(cmd *cobra.Command, args []string) error {
		return wizard.Run(Version)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "jejecipher %s (%s %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
