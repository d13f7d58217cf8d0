// Package main provides the routedoc binary entry point.
// Routedoc documents one HTTP handler at a time in an OpenAPI document.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vitalvas/routedoc/config"
	"github.com/vitalvas/routedoc/openapi"
	"github.com/vitalvas/routedoc/runner"

	// Register language parsers via init()
	_ "github.com/vitalvas/routedoc/source/golang"
	_ "github.com/vitalvas/routedoc/source/typescript"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "routedoc"
)

// errViolations is returned by check when the document breaks an invariant.
var errViolations = errors.New("document has invariant violations")

type options struct {
	configPath string
	repoPath   string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Document HTTP handlers in an OpenAPI document",
		Long: `Routedoc finds the route registration of one handler in the repository
sources, synthesizes its OpenAPI operation and merges it into a YAML
document without disturbing the content already there.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultFile, "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.repoPath, "repo", ".", "Repository path to operate on")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(mergeCmd(opts), resolveCmd(opts), checkCmd(opts))

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func mergeCmd(opts *options) *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "merge <handler> <document>",
		Short: "Merge the operation of a handler into a document",
		Long: `Merge resolves the handler, synthesizes its operation and merges it into
the document, a path relative to the documentation root. With --stdin the
handler and document path are read as two lines from standard input.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if fromStdin {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromStdin {
				var err error
				if args, err = readArgs(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			r, err := newRunner(cmd, opts)
			if err != nil {
				return err
			}

			report, err := r.Merge(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			b := report.Binding
			switch {
			case report.Written:
				fmt.Fprintf(out, "%s %s -> %s (%s)\n", b.Verb, b.Path, report.Document, report.State)
			default:
				fmt.Fprintf(out, "%s %s already documented in %s\n", b.Verb, b.Path, report.Document)
			}
			for _, name := range report.Schemas {
				fmt.Fprintf(out, "  added schema %s\n", name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read handler and document path from standard input")
	return cmd
}

func resolveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <handler>",
		Short: "Print the route binding of a handler",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRunner(cmd, opts)
			if err != nil {
				return err
			}

			b, err := r.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "handler: %s\n", b.HandlerName)
			if b.ClassName != "" {
				fmt.Fprintf(out, "class:   %s\n", b.ClassName)
			}
			fmt.Fprintf(out, "verb:    %s\n", b.Verb)
			fmt.Fprintf(out, "path:    %s\n", b.Path)
			fmt.Fprintf(out, "scope:   %s\n", b.Scope)
			fmt.Fprintf(out, "tag:     %s\n", b.Tag)
			fmt.Fprintf(out, "source:  %s\n", b.Pos)
			for _, v := range b.PathParameters {
				fmt.Fprintf(out, "param:   %s (%s)\n", v.Name, openapi.PathParameter(v).Schema.Type.First())
			}
			return nil
		},
	}
}

func checkCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check <document>",
		Short: "Report invariant violations of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRunner(cmd, opts)
			if err != nil {
				return err
			}

			violations, err := r.Check(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, v := range violations {
				fmt.Fprintln(out, v)
			}
			if len(violations) > 0 {
				return fmt.Errorf("%w: %d found", errViolations, len(violations))
			}
			fmt.Fprintf(out, "%s: ok\n", args[0])
			return nil
		},
	}
}

// newRunner configures logging, resolves the repository and loads the
// configuration shared by every command.
func newRunner(cmd *cobra.Command, opts *options) (*runner.Runner, error) {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: parseLevel(opts.logLevel)})).
		With(slog.String("run_id", uuid.NewString()))
	slog.SetDefault(logger)

	absRepoPath, err := filepath.Abs(opts.repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolve repo path: %w", err)
	}

	info, err := os.Stat(absRepoPath)
	if err != nil {
		return nil, fmt.Errorf("stat repo path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absRepoPath)
	}

	explicit := cmd.Flags().Changed("config")
	cfg, err := loadConfig(opts.configPath, absRepoPath, explicit)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger.Debug("routedoc starting",
		slog.String("version", Version),
		slog.String("repo_path", absRepoPath),
		slog.String("docs_root", cfg.DocsRoot))

	return runner.New(absRepoPath, cfg, logger), nil
}

// loadConfig reads the configuration file. A relative path is taken from
// the repository root. The default file may be absent; an explicitly
// named one may not.
func loadConfig(path, repoPath string, explicit bool) (*config.Config, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(repoPath, path)
	}

	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return config.DefaultConfig(), nil
	}
	return cfg, err
}

// readArgs reads the handler name and document path as the first two
// non-blank lines of r.
func readArgs(r io.Reader) ([]string, error) {
	var args []string

	scanner := bufio.NewScanner(r)
	for len(args) < 2 && scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			args = append(args, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read standard input: %w", err)
	}
	if len(args) < 2 {
		return nil, fmt.Errorf("standard input must hold a handler name and a document path, got %d line(s)", len(args))
	}
	return args, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
