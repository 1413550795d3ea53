package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docsearch/internal/api"
	"docsearch/internal/config"
	"docsearch/internal/service"
	"docsearch/internal/tui"
)

func newInitCommand(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to the --config path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.ResolvePath(opts.configPath)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(path, config.Default()); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			defer a.Close()

			srv := api.New(a.svc, a.cfg, a.logger).HTTPServer()
			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			select {
			case err := <-errCh:
				return fmt.Errorf("server failed: %w", err)
			case <-ctx.Done():
			}

			a.logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.Server.ShutdownTimeoutSecs)*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("server forced to shutdown", zap.Error(err))
			}
			return nil
		},
	}
}

func newIngestCommand(opts *rootOptions) *cobra.Command {
	var appendFiles bool
	cmd := &cobra.Command{
		Use:   "ingest <index> <file|glob>...",
		Short: "Create an index from local files, or extend it with --append",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			defer a.Close()

			files, err := expandInputs(args[1:])
			if err != nil {
				return err
			}
			dir, err := os.MkdirTemp(a.cfg.Paths.Docs, "ingest-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(dir)
			for _, f := range files {
				if err := copyFile(f, filepath.Join(dir, filepath.Base(f))); err != nil {
					return err
				}
			}

			var stats service.IngestStats
			if appendFiles {
				stats, err = a.svc.AddFiles(cmd.Context(), args[0], dir)
			} else {
				stats, err = a.svc.CreateIndex(cmd.Context(), args[0], dir)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexed %d documents as %d chunks into %q\n", stats.Documents, stats.Chunks, args[0])
			fmt.Fprintf(out, "Sources: %s\n", strings.Join(stats.Sources, ", "))
			if stats.Summary != "" {
				fmt.Fprintf(out, "\nSummary:\n%s\n", stats.Summary)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&appendFiles, "append", false, "add files to an existing index instead of replacing it")
	return cmd
}

func newSearchCommand(opts *rootOptions) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "search <index>",
		Short: "Query an index interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			defer a.Close()

			ok, err := a.svc.Exists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("index %q does not exist", args[0])
			}
			_, err = tea.NewProgram(tui.New(a.svc, args[0], source), tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "only search chunks of this source file")
	return cmd
}

func newSourcesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sources <index>",
		Short: "List the source files of an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			defer a.Close()

			sources, err := a.svc.ListSources(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, s := range sources {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
}

func newDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <index>",
		Short: "Delete an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.DeleteIndex(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", args[0])
			return nil
		},
	}
}

// expandInputs resolves glob patterns into regular files. A pattern that
// matches nothing is an error.
func expandInputs(patterns []string) ([]string, error) {
	var files []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", p)
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, err
			}
			if info.Mode().IsRegular() {
				files = append(files, m)
			}
		}
	}
	if len(files) == 0 {
		return nil, errors.New("no input files")
	}
	return files, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
