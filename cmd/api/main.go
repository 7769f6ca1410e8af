package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "palmview",
		Usage: "extract and score Dubai property listings with a grounded AI model",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				EnvVars: []string{"CONFIG_PATH"},
				Usage:   "path to the YAML config file",
			},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the web server (default)",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "override server.port"},
				},
				Action: serveAction,
			},
			{
				Name:      "analyze",
				Usage:     "analyze one listing URL and print the details as JSON",
				ArgsUsage: "<url>",
				Action:    analyzeAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
