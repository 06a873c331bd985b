package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/tokenledger/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		fmt.Fprintf(os.Stderr, "Config path: %s\n", config.ConfigPath())
		os.Exit(1)
	}

	closeLog := setupLogging(cfg.Log)
	defer closeLog()

	root := newRootCommand(cfg)
	if err := root.Execute(); err != nil {
		closeLog()
		os.Exit(1)
	}
}

func newRootCommand(cfg config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "tokenledger",
		Short:         "tokenledger aggregates AI coding assistant token usage from local logs.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newRangeCommand(cfg),
		newServeCommand(cfg),
		newCacheCommand(cfg),
		newConfigCommand(),
		newSourcesCommand(cfg),
		newVersionCommand(),
	)
	return root
}
