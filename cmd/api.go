package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/mergelens/internal/api"
)

// APICommand starts the webhook server.
func APICommand() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Start the webhook server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overrides server.addr",
			},
		},
		Action: func(c *cli.Context) error {
			settings, err := loadSettings(c, false)
			if err != nil {
				return err
			}
			if addr := c.String("addr"); addr != "" {
				settings.Server.Addr = addr
			}

			pipe, host, err := buildPipeline(c.Context, settings)
			if err != nil {
				return err
			}

			return api.NewServer(settings, pipe, host).Start()
		},
	}
}
