package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dejo1307/gradlefacts/internal/config"
	"github.com/dejo1307/gradlefacts/internal/engine"
	"github.com/dejo1307/gradlefacts/internal/explainers/drift"
	"github.com/dejo1307/gradlefacts/internal/explainers/gaps"
	"github.com/dejo1307/gradlefacts/internal/extractors/conventionextractor"
	"github.com/dejo1307/gradlefacts/internal/extractors/gradleextractor"
	"github.com/dejo1307/gradlefacts/internal/observability"
	"github.com/dejo1307/gradlefacts/internal/project"
	"github.com/dejo1307/gradlefacts/internal/renderers/jsonl"
	"github.com/dejo1307/gradlefacts/internal/renderers/report"
	"github.com/dejo1307/gradlefacts/internal/renderers/text"
	"github.com/dejo1307/gradlefacts/internal/server"
)

var version = "0.1.0"

func main() {
	// Logs go to stderr; stdout carries records or MCP JSON-RPC.
	log.SetOutput(os.Stderr)

	var (
		configPath string
		format     string
		verbose    bool
		write      bool
		trace      bool
	)

	rootCmd := &cobra.Command{
		Use:           "gradlefacts",
		Short:         "Infer JVM framework facts from Gradle build configuration",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default <root>/"+config.FileName+")")
	rootCmd.PersistentFlags().BoolVar(&trace, "trace", false, "Export scan phase spans to stderr")

	scanCmd := &cobra.Command{
		Use:   "scan [root]",
		Short: "Scan a Gradle build and print one record per scope and framework",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) == 1 {
				root = args[0]
			}
			return runScan(cmd.Context(), configPath, root, format, verbose, write, trace)
		},
	}
	scanCmd.Flags().StringVar(&format, "format", "", "Output format: jsonl or text (default from config)")
	scanCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show evidence in text output")
	scanCmd.Flags().BoolVar(&write, "write", false, "Write artifacts to the output directory")

	serveCmd := &cobra.Command{
		Use:   "serve [root]",
		Short: "Run the MCP server on stdio",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) == 1 {
				root = args[0]
			}
			return runServe(cmd.Context(), configPath, root, trace)
		},
	}

	rootCmd.AddCommand(scanCmd, serveCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode maps structural failures to distinct exit codes.
func exitCode(err error) int {
	var orphan *project.OrphanModuleError
	switch {
	case errors.As(err, &orphan):
		return 3
	case errors.Is(err, engine.ErrNoBuildScripts):
		return 2
	default:
		return 1
	}
}

// loadConfig resolves the root and loads its configuration.
func loadConfig(configPath, root string) (*config.Config, string, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, "", fmt.Errorf("resolving root: %w", err)
	}
	if configPath == "" {
		configPath = filepath.Join(abs, config.FileName)
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, "", err
	}
	cfg.Repo = abs
	return cfg, abs, nil
}

func newEngine(cfg *config.Config) (*engine.Engine, error) {
	eng, err := engine.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	eng.RegisterExtractor(gradleextractor.New(cfg.CatalogAccessors...))
	eng.RegisterExtractor(conventionextractor.New())

	eng.RegisterExplainer(drift.New())
	eng.RegisterExplainer(gaps.New())

	eng.RegisterRenderer(jsonl.New())
	eng.RegisterRenderer(report.New(0))
	return eng, nil
}

func startTracing(cfg *config.Config, flag bool) (func(), error) {
	tp, err := observability.InitTracing(observability.TracingConfig{
		Enabled: flag || cfg.Trace,
		Writer:  os.Stderr,
		Pretty:  true,
	})
	if err != nil {
		return nil, err
	}
	return func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("[main] tracing shutdown: %v", err)
		}
	}, nil
}

func runScan(ctx context.Context, configPath, root, format string, verbose, write, trace bool) error {
	cfg, abs, err := loadConfig(configPath, root)
	if err != nil {
		return err
	}
	if format == "" {
		format = cfg.Output.Format
	}
	if format != "jsonl" && format != "text" {
		return fmt.Errorf("unknown format %q", format)
	}

	shutdown, err := startTracing(cfg, trace)
	if err != nil {
		return err
	}
	defer shutdown()

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	snapshot, err := eng.GenerateSnapshot(ctx, abs)
	if err != nil {
		return fmt.Errorf("scan %s: %w", abs, err)
	}
	if write {
		if err := eng.WriteArtifacts(abs); err != nil {
			return err
		}
	}

	if format == "text" {
		return text.Write(os.Stdout, snapshot.Records, verbose)
	}
	return jsonl.Write(os.Stdout, snapshot.Records)
}

func runServe(ctx context.Context, configPath, root string, trace bool) error {
	cfg, abs, err := loadConfig(configPath, root)
	if err != nil {
		return err
	}
	shutdown, err := startTracing(cfg, trace)
	if err != nil {
		return err
	}
	defer shutdown()

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}

	// Load records of an earlier scan so queries work before scan_project.
	factsPath := filepath.Join(abs, cfg.Output.Dir, "facts.jsonl")
	if _, err := os.Stat(factsPath); err == nil {
		if err := eng.Store().ReadJSONLFile(factsPath); err != nil {
			log.Printf("[main] warning: failed to load existing facts: %v", err)
		} else {
			log.Printf("[main] loaded %d records from %s", eng.Store().Count(), factsPath)
		}
	}

	srv, err := server.New(eng, cfg, version)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Run(ctx)
}
