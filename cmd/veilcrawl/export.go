package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veilcrawl/veilcrawl/internal/storage"
)

var (
	formatArg string
	outputArg string
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export crawled data",
		RunE:  runExport,
	}

	cmd.Flags().StringVarP(&formatArg, "format", "f", "json", "output format (json)")
	cmd.Flags().StringVarP(&outputArg, "output", "o", "", "output file")
	cmd.MarkFlagRequired("output")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	if formatArg != "json" {
		return fmt.Errorf("unsupported export format %q", formatArg)
	}

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

	pages, err := store.ExportPages(ctx)
	if err != nil {
		return err
	}

	f, err := os.Create(outputArg)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(pages); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}

	fmt.Printf("Exported %d pages to %s\n", len(pages), outputArg)
	return nil
}
