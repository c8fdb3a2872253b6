package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veilcrawl/veilcrawl/internal/storage"
)

var (
	queryArg      string
	entityArg     string
	entityTypeArg string
	limitArg      int64
)

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search crawled data",
		RunE:  runSearch,
	}

	cmd.Flags().StringVarP(&queryArg, "query", "q", "", "full-text query over titles and bodies")
	cmd.Flags().StringVarP(&entityArg, "entity", "e", "", "search by entity value")
	cmd.Flags().StringVarP(&entityTypeArg, "entity-type", "t", "", "entity type filter (email, bitcoin, phone, ...)")
	cmd.Flags().Int64VarP(&limitArg, "limit", "l", 20, "max results")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
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

	switch {
	case queryArg != "":
		results, err := store.SearchText(ctx, queryArg, limitArg)
		if err != nil {
			return err
		}
		fmt.Printf("Found %d results:\n\n", len(results))
		for _, r := range results {
			title := ""
			if r.Title != nil {
				title = *r.Title
			}
			fmt.Printf("  [%s] %s - %s\n", r.Network, r.URL, title)
			if r.Snippet != nil && *r.Snippet != "" {
				snippet := *r.Snippet
				if len(snippet) > 100 {
					snippet = snippet[:100]
				}
				fmt.Printf("    %s\n", snippet)
			}
			fmt.Println()
		}
	case entityArg != "":
		results, err := store.SearchEntity(ctx, entityTypeArg, entityArg, limitArg)
		if err != nil {
			return err
		}
		fmt.Printf("Found %d entity matches:\n\n", len(results))
		for _, r := range results {
			title := ""
			if r.PageTitle != nil {
				title = *r.PageTitle
			}
			fmt.Printf("  [%s] %s = %s (page: %s)\n", r.EntityType, r.Value, r.PageURL, title)
		}
	default:
		fmt.Println("Provide --query or --entity to search")
	}
	return nil
}
