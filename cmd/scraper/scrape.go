package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adda-Baaj/bazar-scraper/internal/app"
	"github.com/Adda-Baaj/bazar-scraper/internal/export"
)

var (
	scrapeURL    string
	scrapePages  string
	scrapeFormat string
	scrapeQuiet  bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape one listing URL and print the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		pageCap, err := cfg.ResolvePages(scrapePages)
		if err != nil {
			return err
		}
		format := strings.ToLower(strings.TrimSpace(scrapeFormat))
		if format != "table" && format != "json" {
			return fmt.Errorf("unknown format %q (expected table or json)", scrapeFormat)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := app.NewRuntime(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer rt.Close()

		onProgress := func(message string, count int) {
			if !scrapeQuiet {
				fmt.Fprintf(os.Stderr, "%s (%d)\n", message, count)
			}
		}

		items, err := rt.Scrape(ctx, scrapeURL, pageCap, onProgress)
		if err != nil {
			return fmt.Errorf("scrape %s: %w", scrapeURL, err)
		}

		if format == "json" {
			return export.WriteJSON(cmd.OutOrStdout(), items)
		}
		return export.WriteTable(cmd.OutOrStdout(), items)
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeURL, "url", "", "listing URL to start from")
	scrapeCmd.Flags().StringVar(&scrapePages, "pages", "", "number of pages to scrape, or \"all\" (default from config)")
	scrapeCmd.Flags().StringVar(&scrapeFormat, "format", "table", "output format: table or json")
	scrapeCmd.Flags().BoolVarP(&scrapeQuiet, "quiet", "q", false, "suppress progress on stderr")
	_ = scrapeCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(scrapeCmd)
}
