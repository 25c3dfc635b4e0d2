package main

import (
	"context"
	"errors"
	"fmt"

	"statementvault/internal/db"
	"statementvault/internal/store"
	"statementvault/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/bcrypt"
)

var seedCommand = &cli.Command{
	Name:  "seed",
	Usage: "Create a demo customer for local development",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "email",
			Value: "demo@example.com",
		},
		&cli.StringFlag{
			Name:  "password",
			Value: "demo-password",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := context.Background()

		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		logrus.Info("Connected to database")

		customerRepo := store.NewCustomerRepository(pool)

		email := c.String("email")
		if _, err := customerRepo.CustomerByEmail(ctx, email); err == nil {
			logrus.WithField("email", email).Info("demo customer already exists")
			return nil
		} else if !errors.Is(err, types.ErrCustomerNotFound) {
			return fmt.Errorf("failed to check existing customer: %w", err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(c.String("password")), 12)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		customer := &types.Customer{
			Email:        email,
			PasswordHash: string(hash),
			FullName:     "Demo Customer",
			Active:       true,
		}

		if err := customerRepo.Create(ctx, customer); err != nil {
			return fmt.Errorf("failed to seed customer: %w", err)
		}

		logrus.WithFields(logrus.Fields{
			"customer_id": customer.ID,
			"email":       email,
		}).Info("demo customer created")

		return nil
	},
}
