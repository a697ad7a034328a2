package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adda-Baaj/bazar-scraper/internal/app"
	"github.com/Adda-Baaj/bazar-scraper/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scrape API and progress stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := app.NewRuntime(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer rt.Close()

		addr := serveAddr
		if addr == "" {
			addr = cfg.ServerAddr
		}
		return server.New(rt, cfg, log).ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
