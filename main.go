// jejecipher: jejetography encode/decode daemon and CLI.
// Entry point: builds the cobra command tree.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yourusername/jejecipher/internal/config"
)

// Version is set via -ldflags at build time.
var Version = "dev"

var (
	verbose bool
	envFile string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "jejecipher",
	Short: "jejetography encoder, decoder and daemon",
	Long: `jejecipher turns words into jejetography and back.

Each letter becomes a symbol, vowels get a ~ marker, words are tagged with
(C) or <V> by their first letter and #L when five letters or longer, and the
whole token sequence is reversed.

Run without arguments to start the daemon (same as "jejecipher serve").`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
		var err error
		logger, err = newLogger(verbose || strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug"))
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "KEY=VALUE file loaded before configuration")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(legendCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
