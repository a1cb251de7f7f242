package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mergelens/internal/config"
)

// ConfigCommand manages the configuration file.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a sample configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
						Value:   "mergelens.toml",
					},
				},
				Action: func(c *cli.Context) error {
					path := c.String("output")
					if err := config.Init(path); err != nil {
						return err
					}
					fmt.Printf("Created configuration file at %s\n", path)
					return nil
				},
			},
			{
				Name:  "validate",
				Usage: "Resolve and validate the configuration",
				Action: func(c *cli.Context) error {
					settings, err := config.Resolve(c.String("config"))
					if err != nil {
						return err
					}
					fmt.Printf("Configuration is valid.\n")
					fmt.Printf("  gitlab:   %s\n", settings.GitLab.URL)
					fmt.Printf("  provider: %s (%s)\n", settings.AI.Provider, settings.AI.Model)
					fmt.Printf("  review:   scope=%s max_files=%d threshold=%s concurrency=%d\n",
						settings.Review.Scope, settings.Review.MaxFiles,
						settings.Review.SeverityThreshold, settings.Review.Concurrency)
					return nil
				},
			},
		},
	}
}
