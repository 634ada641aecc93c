package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
	"go.uber.org/automaxprocs/maxprocs"

	appLog "notioncal/internal/log"
)

var version = "0.1.0-dev"

func main() {
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		appLog.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		appLog.Error("failed to set GOMAXPROCS", err)
	}

	app := cli.NewApp()
	app.Name = "notioncal"
	app.Usage = "Calendar view over Notion databases"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config",
			Usage:  "Path to config file",
			Value:  "/etc/notioncal/config.yaml",
			EnvVar: "NOTIONCAL_CONFIG",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "Output debug messages",
		},
	}
	app.Commands = []cli.Command{
		serveCmd,
		refreshCmd,
		databasesCmd,
		snapshotCmd,
	}

	err := app.Run(os.Args)
	appLog.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
