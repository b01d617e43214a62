package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/fsgate/internal"
	pkgconfig "github.com/starford/fsgate/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Debug("config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func call(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("usage: %s call <create_dir|read_file|write_file> --path PATH [--contents TEXT]", cmd.Root().Name)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	params := map[string]string{"path": cmd.String("path")}
	if cmd.IsSet("contents") {
		params["contents"] = cmd.String("contents")
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}

	res, err := internal.Call(ctx, name, raw, internal.WithConfig(cfg))
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("%s: %s", res.Failure.Kind, res.Failure.Message())
	}
	if res.Content != nil {
		fmt.Fprint(os.Stdout, *res.Content)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "fsgate",
		Usage:   "File access gateway: create directories, read and write text files on behalf of an untrusted caller",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the commands as MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:      "call",
				Usage:     "Run a single command and print its result",
				ArgsUsage: "<command>",
				Action:    call,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Target path"},
					&cli.StringFlag{Name: "contents", Usage: "Text to write (write_file only)"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
