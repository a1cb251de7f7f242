package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mergelens/cmd"
)

const version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "mergelens",
		Usage:   "AI-powered merge request reviewer for GitLab",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			cmd.APICommand(),
			cmd.ReviewCommand(),
			cmd.ConfigCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
