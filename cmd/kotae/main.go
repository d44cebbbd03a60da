// Package main is the kotae CLI entry point.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/mcp"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/pipeline"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/session"
	"github.com/hyperjump/kotae/internal/telemetry"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if it exists so "kotae server" works from a
// checkout. Returns the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	var err error
	switch command {
	case "server":
		err = runServer(args)
	case "ingest":
		err = runIngest(args)
	case "ask":
		err = runAsk(args)
	case "status":
		err = runStatus(args)
	case "reset":
		err = runReset(args)
	case "mcp":
		err = runMCP(args)
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", command, err)
		os.Exit(1)
	}
}

// local holds a pipeline opened directly on the configured collection.
type local struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	pipeline *pipeline.Pipeline
	shutdown telemetry.ShutdownFunc
}

func openLocal(ctx context.Context, configPath string, debug bool) (*local, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved))

	shutdown, err := telemetry.Setup(ctx, cfg.Tracing, version)
	if err != nil {
		return nil, err
	}
	m := metrics.New()
	p, err := pipeline.FromConfig(ctx, cfg, logger, m)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}
	return &local{cfg: cfg, logger: logger, metrics: m, pipeline: p, shutdown: shutdown}, nil
}

func (l *local) Close() {
	if err := l.pipeline.Close(); err != nil {
		l.logger.Warn("close pipeline", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = l.shutdown(ctx)
	_ = l.logger.Sync()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServer(args []string) error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	ctx, stop := signalContext()
	defer stop()

	l, err := openLocal(ctx, *configPath, *debug)
	if err != nil {
		return err
	}
	defer l.Close()

	if dirs := l.cfg.Ingest.WatchDirectories; len(dirs) > 0 {
		w := watcher.NewWatcher(dirs, l.cfg.Ingest.Extensions, true,
			autoIngest(l.pipeline, l.logger), watcher.WithLogger(l.logger))
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer w.Stop()
		w.SyncExistingFiles()
	}

	srv := server.NewServer(l.pipeline, session.NewManager(), l.metrics, l.cfg, l.logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	l.logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// autoIngest returns the watcher callback that adds settled files to the collection.
func autoIngest(p *pipeline.Pipeline, logger *zap.Logger) watcher.BatchFunc {
	return func(ctx context.Context, paths []string) {
		report, err := p.Ingest(ctx, paths, pipeline.IngestOptions{})
		if err != nil {
			logger.Error("auto-ingest failed", zap.Strings("paths", paths), zap.Error(err))
			return
		}
		for _, f := range report.Failures {
			logger.Warn("auto-ingest skipped file", zap.String("path", f.Path), zap.String("error", f.Error))
		}
	}
}

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = open the collection directly)")
	fresh := fs.Bool("fresh", false, "empty the collection before ingesting")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(args))

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae ingest [flags] <file-or-directory>...")
		os.Exit(1)
	}
	format := cli.ParseFormat(*output)
	ctx, stop := signalContext()
	defer stop()

	if *serverURL != "" {
		paths, err := collectPaths(fs.Args(), defaultExtensions(*configPath))
		if err != nil {
			return err
		}
		report, err := newClient(*serverURL).Ingest(ctx, paths, *fresh)
		if err != nil {
			return err
		}
		return cli.WriteIngestReport(os.Stdout, report, format)
	}

	l, err := openLocal(ctx, *configPath, false)
	if err != nil {
		return err
	}
	defer l.Close()
	paths, err := collectPaths(fs.Args(), l.cfg.Ingest.Extensions)
	if err != nil {
		return err
	}
	report, err := l.pipeline.Ingest(ctx, paths, pipeline.IngestOptions{Fresh: *fresh})
	if err != nil {
		return err
	}
	return cli.WriteIngestReport(os.Stdout, report, format)
}

func runAsk(args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = open the collection directly)")
	k := fs.Int("k", 0, "number of chunks to retrieve (0 = configured default)")
	sessionID := fs.String("session", "", "server session id to continue (server mode only)")
	interactive := fs.Bool("i", false, "read questions from stdin until EOF, sharing one session")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(args))

	question := buildQuestion(fs.Args())
	if question == "" && !*interactive {
		fmt.Println("Usage: kotae ask [flags] <question>")
		os.Exit(1)
	}
	format := cli.ParseFormat(*output)
	ctx, stop := signalContext()
	defer stop()

	var ask askFunc
	if *serverURL != "" {
		c := newClient(*serverURL)
		id := *sessionID
		ask = func(ctx context.Context, q string) (*session.Turn, error) {
			resp, err := c.Ask(ctx, q, *k, id)
			if err != nil {
				return nil, err
			}
			id = resp.SessionID
			return &resp.Turn, nil
		}
	} else {
		l, err := openLocal(ctx, *configPath, false)
		if err != nil {
			return err
		}
		defer l.Close()
		sess := session.New("")
		ask = func(ctx context.Context, q string) (*session.Turn, error) {
			return l.pipeline.Ask(ctx, sess, q, *k)
		}
	}

	if !*interactive {
		turn, err := ask(ctx, question)
		if err != nil {
			return err
		}
		return cli.WriteTurn(os.Stdout, turn, format)
	}
	return askLoop(ctx, os.Stdin, os.Stdout, ask, format)
}

type askFunc func(ctx context.Context, question string) (*session.Turn, error)

// askLoop answers one question per input line. Failed questions are reported
// and the loop continues.
func askLoop(ctx context.Context, in io.Reader, out io.Writer, ask askFunc, format cli.OutputFormat) error {
	scanner := bufio.NewScanner(in)
	for {
		if format == cli.OutputText {
			fmt.Fprint(out, "\n> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}
		turn, err := ask(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			cli.WriteError(out, err, format)
			continue
		}
		if err := cli.WriteTurn(out, turn, format); err != nil {
			return err
		}
	}
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = open the collection directly)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	format := cli.ParseFormat(*output)
	ctx, stop := signalContext()
	defer stop()

	if *serverURL != "" {
		status, err := newClient(*serverURL).Status(ctx)
		if err != nil {
			return err
		}
		return cli.WriteStatus(os.Stdout, status, format)
	}
	l, err := openLocal(ctx, *configPath, false)
	if err != nil {
		return err
	}
	defer l.Close()
	status, err := l.pipeline.Status(ctx)
	if err != nil {
		return err
	}
	return cli.WriteStatus(os.Stdout, status, format)
}

func runReset(args []string) error {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = open the collection directly)")
	_ = fs.Parse(args)

	ctx, stop := signalContext()
	defer stop()

	if *serverURL != "" {
		if err := newClient(*serverURL).Reset(ctx); err != nil {
			return err
		}
	} else {
		l, err := openLocal(ctx, *configPath, false)
		if err != nil {
			return err
		}
		defer l.Close()
		if err := l.pipeline.Reset(ctx); err != nil {
			return err
		}
	}
	fmt.Println("Collection reset.")
	return nil
}

func runMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	httpAddr := fs.String("http", "", "serve the streamable HTTP transport on this address instead of stdio")
	_ = fs.Parse(args)

	ctx, stop := signalContext()
	defer stop()

	l, err := openLocal(ctx, *configPath, false)
	if err != nil {
		return err
	}
	defer l.Close()

	s, err := mcp.NewServer(l.pipeline, version, l.logger)
	if err != nil {
		return err
	}
	if *httpAddr != "" {
		return s.RunHTTP(ctx, *httpAddr)
	}
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildQuestion joins positional args so questions work with or without quotes.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves flags that appear after positional arguments to the front
// so flag.Parse sees them ("kotae ask what is x -k 3").
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// collectPaths expands directories into the files under them whose extension
// is in exts. Files named explicitly are kept regardless of extension so the
// ingest can report them as unsupported.
func collectPaths(args []string, exts []string) ([]string, error) {
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed["."+strings.TrimPrefix(strings.ToLower(e), ".")] = true
	}
	var paths []string
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, abs)
			continue
		}
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != abs && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if allowed[strings.ToLower(filepath.Ext(path))] {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if len(paths) == 0 {
		return nil, errors.New("no supported documents found")
	}
	return paths, nil
}

// defaultExtensions returns the configured extensions, or the built-in
// defaults when the config cannot be loaded.
func defaultExtensions(configPath string) []string {
	if cfg, _, err := loadConfig(configPath); err == nil {
		return cfg.Ingest.Extensions
	}
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	return cfg.Ingest.Extensions
}

func printUsage() {
	fmt.Println(`kotae - Answer questions from your documents

Usage:
  kotae server [flags]                 Start the HTTP server
  kotae ingest [flags] <path>...       Ingest files or directories
  kotae ask [flags] <question>         Ask a question about ingested documents
  kotae status [flags]                 Show collection status
  kotae reset [flags]                  Empty the collection
  kotae mcp [flags]                    Serve MCP tools over stdio
  kotae version                        Show version
  kotae help                           Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml, or ./config.yaml)
  --server string    Server URL. When set, ingest/ask/status/reset call a running server instead of
                     opening the collection directly.
  --output string    Output format: text or json (default: text)

Server Flags:
  --debug            Enable debug logging

Ingest Flags:
  --fresh            Empty the collection before ingesting

Ask Flags:
  --k int            Number of chunks to retrieve (default from config)
  --session string   Continue a server session (server mode only)
  -i                 Interactive: one question per line, sharing a session

MCP Flags:
  --http string      Serve the streamable HTTP transport on this address instead of stdio

Examples:
  kotae ingest ./docs report.pdf
  kotae ingest --fresh handbook.docx
  kotae ask what is the refund policy
  kotae ask --k 8 --output json "Who signed the contract?"
  kotae ask -i
  kotae server
  kotae ingest --server http://localhost:8080 notes.md
  kotae status --output json`)
}
