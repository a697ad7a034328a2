package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adda-Baaj/bazar-scraper/internal/config"
	"github.com/Adda-Baaj/bazar-scraper/internal/logger"
)

var (
	cfg *config.Config
	log logger.Logger
)

var rootCmd = &cobra.Command{
	Use:           "bazar-scraper",
	Short:         "Paginated listing scraper for bazos.sk and mojadm.sk",
	Long:          "Walks listing pages of classified-ad and catalog sites, enriches every listing from its detail page and prints or serves the results.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		l, err := logger.Init(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		log = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Close()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bazar-scraper: %v\n", err)
		os.Exit(1)
	}
}
