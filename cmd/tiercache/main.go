// Command tiercache runs the named two-tier caches behind a read-only stats
// API and reports their statistics to the configured sinks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/objectfs/tiercache/internal/config"
)

// Version is set at build time
var Version = ""

var configFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tiercache",
		Short:         "Two-tier in-memory cache with stats monitoring",
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       version(),
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file (defaults are used when empty)")
	root.AddCommand(newServeCmd(), newConfigCmd())
	return root
}

func version() string {
	if Version == "" {
		return "unknown (built from source)"
	}
	return Version
}

// loadConfig layers the config file and the environment over the defaults
func loadConfig(path string) (*config.Configuration, error) {
	cfg := config.NewDefault()
	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
