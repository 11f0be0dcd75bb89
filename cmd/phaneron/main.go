// Command phaneron runs the runtime's serve process: the state registry
// (component G), its scheduler-driven nodes (component F), and whichever
// plugin hosts are enabled in config.Config.
//
// Structured the way the teacher's cmd/hydra/main.go builds a single
// cobra.Command with flags bound to package vars, rather than the
// cmd/helix split of a package-level NewRootCmd() plus per-command files
// across a larger multi-command CLI surface; phaneron has exactly one
// long-running command worth that ceremony.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var logLevel string

func main() {
	rootCmd := &cobra.Command{
		Use:   "phaneron",
		Short: "Phaneron real-time media compositing runtime",
		Long: `Phaneron is a real-time video/audio compositing engine: a graph of
producer, transform, and consumer nodes ticked by a per-node scheduler and
wired together through a pull-balanced pipe, with the whole graph's
structure observable as a broadcast snapshot.`,
		RunE: runServe,
	}

	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides PHANERON_LOG_LEVEL")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("phaneron: failed to execute command")
	}
}

func setupLogging(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}
