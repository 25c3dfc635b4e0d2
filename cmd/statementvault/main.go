package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "statementvault",
		Usage: "Encrypted account-statement storage with single-use download links",
		Commands: []*cli.Command{
			serveCommand,
			migrateCommand,
			sweepCommand,
			seedCommand,
			tokenCommand,
			auditCommand,
			configCommand,
			nanoidCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("application failed")
	}
}
