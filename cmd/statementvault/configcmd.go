package main

import (
	"github.com/k0kubun/pp/v3"
	"github.com/urfave/cli/v2"
)

var configCommand = &cli.Command{
	Name:  "config",
	Usage: "Print the resolved configuration with secrets redacted",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		redacted := *cfg
		if redacted.JWTSecret != "" {
			redacted.JWTSecret = "[redacted]"
		}
		if redacted.S3SecretAccessKey != "" {
			redacted.S3SecretAccessKey = "[redacted]"
		}
		if redacted.CookieHashKey != "" {
			redacted.CookieHashKey = "[redacted]"
		}
		if redacted.CookieBlockKey != "" {
			redacted.CookieBlockKey = "[redacted]"
		}
		redacted.DatabaseURL = "[redacted]"

		pp.Println(redacted)
		return nil
	},
}
