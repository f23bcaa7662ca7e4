package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/jera/internal"
	"github.com/starford/jera/internal/export"
	"github.com/starford/jera/internal/index"
	"github.com/starford/jera/internal/mcpserver"
	"github.com/starford/jera/internal/parser"
	"github.com/starford/jera/internal/storage"
	"github.com/starford/jera/internal/taskservice"
	pkgconfig "github.com/starford/jera/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

// check parses the project and prints every warning, one per line.
// Exits non-zero when any warnings are found.
func check(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	project := parser.ParseProject(cfg.Project.Dir, cfg.Project.KnownCustomFields())
	if len(project.Warnings) == 0 {
		fmt.Println("no warnings")
		return nil
	}
	for _, w := range project.Warnings {
		if w.File != "" {
			fmt.Printf("%s:%d: %s\n", w.File, w.Line, w.Message)
		} else {
			fmt.Println(w.Message)
		}
	}
	return fmt.Errorf("%d warning(s)", len(project.Warnings))
}

// exportProject writes the project to stdout in the requested format.
func exportProject(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	format, err := export.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	project := parser.ParseProject(cfg.Project.Dir, cfg.Project.KnownCustomFields())
	return export.Export(os.Stdout, project, format)
}

// mcp runs the MCP server over stdio against the configured project.
func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := storage.NewFS(cfg.Project.Dir)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Stdout carries the MCP protocol; keep logs on stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))

	// NewService parses the project and populates the index.
	svc := taskservice.NewService(store, db, logger, cfg.Project.KnownCustomFields(), cfg.Project.Backup)
	return mcpserver.New(svc, store).ServeStdio()
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:   "jera",
		Usage:  "Plain-Markdown work breakdown structure editor with round-trip safe saves",
		Action: serve,
		Flags:  []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server (default)",
				Action: serve,
				Flags:  []cli.Flag{configFlag},
			},
			{
				Name:   "check",
				Usage:  "Parse the project and report warnings",
				Action: check,
				Flags:  []cli.Flag{configFlag},
			},
			{
				Name:   "export",
				Usage:  "Export the project to stdout",
				Action: exportProject,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: json, csv, mermaid, markdown",
						Value:   "json",
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Run the MCP server on stdio",
				Action: mcp,
				Flags:  []cli.Flag{configFlag},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
