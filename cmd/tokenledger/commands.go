package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/tokenledger/internal/config"
	"github.com/janekbaraniewski/tokenledger/internal/core"
	"github.com/janekbaraniewski/tokenledger/internal/daemon"
	"github.com/janekbaraniewski/tokenledger/internal/detect"
	"github.com/janekbaraniewski/tokenledger/internal/render"
	"github.com/janekbaraniewski/tokenledger/internal/telemetry"
	"github.com/janekbaraniewski/tokenledger/internal/version"
)

func newRangeCommand(cfg config.Config) *cobra.Command {
	var (
		req    telemetry.RangeRequest
		asJSON bool
		width  int
	)
	cmd := &cobra.Command{
		Use:   "range",
		Short: "Aggregate token usage for a closed range of past days",
		Example: "  tokenledger range --start 2024-01-01 --end 2024-01-07\n" +
			"  tokenledger range --start 2024-01-01 --end 2024-01-31 --json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closer, err := buildRangeService(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			resp := svc.Query(ctx, req)
			svc.Flush()
			return writeRangeResponse(cmd.OutOrStdout(), resp, asJSON, width)
		},
	}
	cmd.Flags().StringVar(&req.StartDate, "start", "", "first day of the range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&req.EndDate, "end", "", "last day of the range (YYYY-MM-DD), must be before today")
	cmd.Flags().StringVar(&req.Timezone, "timezone", core.SupportedTimezone, "timezone day boundaries are computed in")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	cmd.Flags().IntVar(&width, "width", 80, "table width in columns")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func writeRangeResponse(w io.Writer, resp telemetry.RangeResponse, asJSON bool, width int) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
	} else if resp.Success {
		fmt.Fprint(w, render.UsageReport(*resp.Data, resp.Meta, width))
	}
	if !resp.Success {
		return fmt.Errorf("%s: %s", resp.Error, resp.Message)
	}
	return nil
}

func newServeCommand(cfg config.Config) *cobra.Command {
	var (
		addr    string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve range queries over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closer, err := buildRangeService(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			srv := daemon.NewServer(daemon.Config{Addr: addr, Verbose: verbose}, svc)
			fmt.Fprintf(cmd.ErrOrStderr(), "tokenledger listening on %s\n", addr)
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", cfg.Server.Addr, "listen address")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "log every request")
	return cmd
}

func newCacheCommand(cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the daily summary cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print where daily summaries are stored",
		RunE: func(cmd *cobra.Command, _ []string) error {
			location, err := cacheLocation(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", location, cfg.Cache.Backend)
			return nil
		},
	})
	return cmd
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the settings file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the settings file location",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.ConfigPath())
			return nil
		},
	})

	var (
		path  string
		force bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a settings file with the default values",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				path = config.ConfigPath()
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.SaveTo(path, config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&path, "path", "", "settings file to write (default: the standard location)")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing settings file")
	cmd.AddCommand(initCmd)
	return cmd
}

func newSourcesCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Show which log sources are enabled and present",
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			for _, status := range (detect.Prober{}).Inspect(sourceCandidates(cfg)) {
				state := "disabled"
				switch {
				case status.Enabled && status.HasData():
					state = "ready"
				case status.Enabled:
					state = "no data"
				}
				fmt.Fprintf(w, "%-12s %-9s %s\n", status.System, state, status.BinaryPath)
				for _, root := range status.Roots {
					mark := "-"
					if root.Exists {
						mark = "+"
					}
					fmt.Fprintf(w, "  %s %s\n", mark, root.Path)
				}
			}
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "tokenledger "+strings.TrimSpace(version.String()))
		},
	}
}

