package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"statementvault/internal/db"
	"statementvault/internal/store"

	"github.com/urfave/cli/v2"
)

var auditCommand = &cli.Command{
	Name:      "audit",
	Usage:     "Print a customer's recent audit trail, newest first",
	ArgsUsage: "<customer id>",
	Flags: []cli.Flag{
		&cli.Uint64Flag{
			Name:    "limit",
			Aliases: []string{"n"},
			Usage:   "Maximum number of entries",
			Value:   50,
		},
	},
	Action: func(c *cli.Context) error {
		customerID := c.Args().First()
		if customerID == "" {
			return fmt.Errorf("customer id is required")
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

		entries, err := store.NewAuditLogRepository(pool).EntriesByCustomer(ctx, customerID, c.Uint64("limit"))
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "OCCURRED\tACTION\tRESOURCE\tIP\tDETAILS")
		for _, entry := range entries {
			resourceID := ""
			if entry.ResourceID != nil {
				resourceID = *entry.ResourceID
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				entry.OccurredAt.Format("2006-01-02 15:04:05"),
				entry.Action, resourceID, entry.IPAddress, entry.Details)
		}
		return w.Flush()
	},
}
