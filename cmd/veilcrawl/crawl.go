package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/veilcrawl/veilcrawl/internal/crawler"
	"github.com/veilcrawl/veilcrawl/internal/storage"
)

var (
	seedsArg string
	seedArg  string
	depthArg int
)

func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Start crawling from seed URLs",
		Long: `Start the crawl. Seeds come from --seed, --seeds (file path or
comma-separated list), or the built-in bootstrap set when neither is given.
Runs until interrupted; Ctrl+C shuts down gracefully.`,
		RunE: runCrawl,
	}

	cmd.Flags().StringVar(&seedsArg, "seeds", "", "seed URLs: file path or comma-separated list")
	cmd.Flags().StringVar(&seedArg, "seed", "", "single seed URL")
	cmd.Flags().IntVarP(&depthArg, "depth", "d", 0, "maximum crawl depth (0 = config default)")

	return cmd
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if depthArg > 0 {
		cfg.General.MaxDepth = depthArg
	}
	logger := setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	drivers := crawler.BuildDrivers(cfg, logger)
	if len(drivers) == 0 {
		return fmt.Errorf("no network drivers available")
	}

	// Pool sized to the worker count plus headroom for the storage sink.
	totalWorkers := 0
	for _, d := range drivers {
		totalWorkers += d.MaxConcurrency()
	}
	poolSize := totalWorkers + 5
	if poolSize < 10 {
		poolSize = 10
	}

	store, err := storage.NewWithPoolSize(ctx, cfg.Database.PostgresURL, poolSize, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.RunMigrations(ctx); err != nil {
		return err
	}

	c := crawler.New(cfg, drivers, store, logger)

	seeds, err := collectSeeds()
	if err != nil {
		return err
	}
	if len(seeds) == 0 {
		seeds = crawler.GetAllSeeds()
		logger.Info("no seeds provided, using default seeds")
	}
	c.AddSeeds(seeds)

	logger.Info("press Ctrl+C to stop crawling", "workers", totalWorkers)
	return c.Run(ctx)
}

// collectSeeds gathers seeds from --seed and --seeds (file or CSV).
func collectSeeds() ([]string, error) {
	var seeds []string
	if seedArg != "" {
		seeds = append(seeds, seedArg)
	}
	if seedsArg != "" {
		if _, err := os.Stat(seedsArg); err == nil {
			content, err := os.ReadFile(seedsArg)
			if err != nil {
				return nil, fmt.Errorf("read seeds file: %w", err)
			}
			for _, line := range strings.Split(string(content), "\n") {
				if line = strings.TrimSpace(line); line != "" {
					seeds = append(seeds, line)
				}
			}
		} else {
			for _, s := range strings.Split(seedsArg, ",") {
				if s = strings.TrimSpace(s); s != "" {
					seeds = append(seeds, s)
				}
			}
		}
	}
	return seeds, nil
}
