package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"bike_hotels/internal/adapters/observability"
	"bike_hotels/internal/bootstrap"
	"bike_hotels/internal/shared"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:               "hotelctl",
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	Short:             "Look up hotels with bikes from the command line",
	SilenceUsage:      true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Logger = observability.NewLogger("dev", "hotelctl").Output(zerolog.ConsoleWriter{Out: os.Stderr})
		if !verbose {
			log.Logger = log.Logger.Level(zerolog.WarnLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log progress to stderr")
}

// withService builds the same service the API uses, from the same env.
func withService(ctx context.Context, fn func(*bootstrap.Deps) error) error {
	deps, err := bootstrap.Build(ctx, shared.Load())
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close() }()
	return fn(deps)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
