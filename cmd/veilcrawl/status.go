package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veilcrawl/veilcrawl/internal/storage"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show crawl status and database stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg)
			ctx := context.Background()

			store, err := storage.New(ctx, cfg.Database.PostgresURL, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.CheckConnectivity(ctx); err != nil {
				fmt.Println("Database: ERROR -", err)
				return nil
			}
			fmt.Println("Database: connected")

			if err := store.RunMigrations(ctx); err != nil {
				return err
			}

			pages, _ := store.GetPageCount(ctx)
			entities, _ := store.GetEntityCount(ctx)
			links, _ := store.GetLinkCount(ctx)
			correlations, _ := store.GetCorrelationCount(ctx)
			dead, _ := store.GetDeadURLCount(ctx)

			fmt.Println()
			fmt.Println("veilcrawl status")
			fmt.Println("----------------")
			fmt.Printf("  Pages crawled:    %d\n", pages)
			fmt.Printf("  Entities found:   %d\n", entities)
			fmt.Printf("  Links discovered: %d\n", links)
			fmt.Printf("  Correlations:     %d\n", correlations)
			fmt.Printf("  Dead URLs:        %d\n", dead)
			fmt.Println()
			return nil
		},
	}
}
