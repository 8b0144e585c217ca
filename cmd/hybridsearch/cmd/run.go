package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/localdex/hybridsearch/internal/api"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the HTTP search and ingest server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.watcher != nil {
		go func() {
			if err := a.watcher.Start(ctx, a.cfg.Paths.WatchPaths); err != nil {
				slog.Warn("watch: stopped", "error", err)
			}
		}()
		slog.Info("watching paths for changes", "paths", a.cfg.Paths.WatchPaths)
	}

	server := api.New(a.retriever, a.pipeline, a.manager, a.cfg.API.CorsOrigins)

	slog.Info("hybridsearch listening", "addr", a.cfg.API.Bind)
	fmt.Println("hybridsearch listening on", a.cfg.API.Bind)
	return http.ListenAndServe(a.cfg.API.Bind, server)
}
