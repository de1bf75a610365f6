package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/cardboard/internal"
	pkgconfig "github.com/starford/cardboard/pkg/config"
)

var version = "dev"

type runner func(ctx context.Context, opts ...internal.Option) error

// loadOptions reads the config file. The default path may be absent, in
// which case built-in defaults apply; an explicitly named file must exist.
func loadOptions(cmd *cli.Command) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	opts := []internal.Option{internal.WithVersion(version)}

	if cmd.IsSet("config") {
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		return append(opts, internal.WithConfig(cfg), internal.WithConfigFile(configPath)), nil
	}

	found, err := pkgconfig.LoadIfExists(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	opts = append(opts, internal.WithConfig(cfg))
	if found {
		opts = append(opts, internal.WithConfigFile(configPath))
	}
	return opts, nil
}

func action(run runner) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		opts, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		if err := run(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "cardboard",
		Usage:   "Card board over a remote REST collection, served to the browser, the terminal and MCP clients",
		Version: version,
		Action:  action(internal.Run),
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
				Usage:  "Serve the board to browsers (default)",
				Action: action(internal.Run),
			},
			{
				Name:   "tui",
				Usage:  "Open the board in the terminal",
				Action: action(internal.RunTUI),
			},
			{
				Name:   "mcp",
				Usage:  "Expose the board as MCP tools over stdio",
				Action: action(internal.RunMCP),
			},
			{
				Name:   "mock",
				Usage:  "Serve a mock card collection for local development",
				Action: action(internal.RunMock),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
