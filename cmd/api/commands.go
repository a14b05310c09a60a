package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"alphaseeker/pkg/api"
	"alphaseeker/pkg/config"
	"alphaseeker/pkg/core/pipeline"
)

func newRootCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:          "alphaseeker",
		Short:        "AlphaSeeker analysis orchestration and history service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file path (default config/alphaseeker.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	})
	rootCmd.AddCommand(newHistoryCmd(&configPath, &debug))
	rootCmd.AddCommand(newImportCmd(&configPath, &debug))
	rootCmd.AddCommand(newPromptsCmd(&configPath))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	a, err := newApp(ctx, configPath, debug)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := api.New(api.Config{
		Port:           a.cfg.Server.Port,
		RequestTimeout: a.cfg.Server.RequestTimeout,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		Version:        Version,
		Log:            a.log,
		Orchestrator:   a.orch,
		Providers:      a.agents,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		a.log.Info().Str("signal", sig.String()).Msg("shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newHistoryCmd(configPath *string, debug *bool) *cobra.Command {
	var ticker string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print stored analyses as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath, *debug)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.orch.History(ctx, ticker)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		},
	}
	cmd.Flags().StringVar(&ticker, "ticker", "", "Only show this ticker")
	return cmd
}

func newImportCmd(configPath *string, debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import analyses from a JSONL or JSON-array export",
		Long: `Import reads records of the form {"ticker","timestamp","price","data"} and saves
each one that passes validation. Invalid records are reported and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath, *debug)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			records, err := readRecords(f)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			var imported, skipped int
			for i, rec := range records {
				if _, err := a.orch.Import(ctx, rec); err != nil {
					if pipeline.KindOf(err) != pipeline.KindInvalidInput {
						return fmt.Errorf("record %d: %w", i+1, err)
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "record %d skipped: %v\n", i+1, err)
					skipped++
					continue
				}
				imported++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d\n", imported, skipped)
			return nil
		},
	}
}

// readRecords accepts either a JSON array of records or one record per line.
func readRecords(r io.Reader) ([]pipeline.ImportRequest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var recs []pipeline.ImportRequest
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, err
		}
		return recs, nil
	}

	var recs []pipeline.ImportRequest
	for n, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var rec pipeline.ImportRequest
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", n+1, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func newPromptsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "prompts",
		Short: "List the prompt templates in effect",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			prompts, err := loadPrompts(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-24s %-8s %s\n", "ID", "VERSION", "NAME")
			for _, id := range prompts.ListPrompts() {
				pt, err := prompts.GetPrompt(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-24s %-8s %s\n", pt.ID, pt.Version, pt.Name)
			}
			fmt.Fprintf(out, "%d prompts\n", prompts.Count())
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "alphaseeker %s\n", Version)
		},
	}
}
