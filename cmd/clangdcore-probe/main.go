// Command clangdcore-probe is a thin manual-smoke-test driver for the
// indexing coordination core: it materializes a single ComponentSession
// against a build directory, waits on its indexing latch, and prints the
// resulting ComponentIndexState as JSON. It is not a tool adapter and not
// an MCP server — just enough wiring to exercise the core end to end.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/cxxls/clangd-indexcore/internal/config"
	"github.com/cxxls/clangd-indexcore/internal/logger"
	"github.com/cxxls/clangd-indexcore/internal/version"
	"github.com/cxxls/clangd-indexcore/internal/workspace"
)

func main() {
	app := &cli.App{
		Name:  "clangdcore-probe",
		Usage: "exercise the clangd indexing core against one build directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "build-dir",
				Usage:    "build directory containing compile_commands.json",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "source-root",
				Usage: "project source root (defaults to build-dir's parent)",
			},
			&cli.StringFlag{
				Name:  "clangd-path",
				Usage: "override the clangd binary (defaults to $CLANGD_PATH, then PATH)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "how long to wait for initial indexing to finish",
				Value: 2 * time.Minute,
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "optional path to a core log file (default: no logging)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "clangdcore-probe:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	buildDir, err := filepath.Abs(c.String("build-dir"))
	if err != nil {
		return err
	}
	sourceRoot := c.String("source-root")
	if sourceRoot == "" {
		sourceRoot = filepath.Dir(buildDir)
	}

	cfg := config.Default()
	if p := c.String("clangd-path"); p != "" {
		cfg.ClangdPath = p
	} else if env := os.Getenv("CLANGD_PATH"); env != "" {
		cfg.ClangdPath = env
	}

	var lg logger.Logger = &logger.NullLogger{}
	if logPath := c.String("log-file"); logPath != "" {
		fl, err := logger.NewFileLogger(logPath, logger.LevelDebug)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer fl.Close()
		lg = fl
	}

	vers, err := version.Detect(cfg.ClangdPath)
	if err != nil {
		return fmt.Errorf("detecting clangd version: %w", err)
	}

	scanner := workspace.NewFilesystemScanner(sourceRoot, cfg.MaxScanDepth)
	ws := workspace.New(scanner, cfg, vers, lg, workspace.WithKnownComponents(&workspace.ProjectComponent{
		BuildDir:      buildDir,
		SourceRoot:    sourceRoot,
		CompileDBPath: filepath.Join(buildDir, "compile_commands.json"),
	}))
	defer ws.Stop()

	cs, err := ws.GetComponentSession(buildDir)
	if err != nil {
		return fmt.Errorf("materializing component session: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	if err := cs.EnsureIndexed(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "indexing did not complete cleanly:", err)
	}

	state := cs.GetIndexState()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}
