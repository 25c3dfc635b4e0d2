package main

import (
	"context"
	"fmt"
	"time"

	"statementvault/internal/db"
	"statementvault/internal/statement"
	"statementvault/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var sweepCommand = &cli.Command{
	Name:  "sweep",
	Usage: "Run one expired-token cleanup pass and exit",
	Action: func(c *cli.Context) error {
		logger := logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})

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

		sweeper := statement.NewSweeper(logger, store.NewDownloadTokenRepository(pool),
			time.Duration(config.SweepIntervalMinutes)*time.Minute,
			time.Duration(config.TokenRetentionHours)*time.Hour)

		removed, err := sweeper.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}

		logger.WithField("removed", removed).Info("sweep complete")
		return nil
	},
}
