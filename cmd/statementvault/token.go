package main

import (
	"context"
	"fmt"
	"time"

	"statementvault/internal/db"
	"statementvault/internal/store"

	"github.com/k0kubun/pp/v3"
	"github.com/urfave/cli/v2"
)

var tokenCommand = &cli.Command{
	Name:      "token",
	Usage:     "Inspect a download token by its value",
	ArgsUsage: "<token value>",
	Action: func(c *cli.Context) error {
		value := c.Args().First()
		if value == "" {
			return fmt.Errorf("token value is required")
		}

		config, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := context.Background()

		pool, err := db.Connect(ctx, config)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		token, err := store.NewDownloadTokenRepository(pool).TokenByValue(ctx, value)
		if err != nil {
			return err
		}

		pp.Println(token)
		fmt.Println("redeemable:", token.Redeemable(time.Now()))
		return nil
	},
}
