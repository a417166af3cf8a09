package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abiiranathan/kbsearch/cli"
	"github.com/abiiranathan/kbsearch/mcp"
	"github.com/abiiranathan/kbsearch/routes"
)

// Run serves the search API, the rendered images and the MCP SSE transport
// until ctx is cancelled, then shuts the server down gracefully.
func Run(ctx context.Context, config *cli.Config, searcher routes.Searcher, tools *mcp.Server, logger *slog.Logger) error {
	// Create the pages directory if it does not exist
	// We use this to store the generated images from pdfs.
	err := os.MkdirAll(config.OutputDir, os.ModePerm)
	if err != nil {
		return fmt.Errorf("unable to create directory: %s: %w", config.OutputDir, err)
	}

	// Create a new serveMux
	mux := http.NewServeMux()

	// Create a new http server to customize the timeouts.
	// No WriteTimeout: event streams stay open for the whole session.
	server := &http.Server{
		Addr:              config.Addr(),
		Handler:           routes.Logger(logger)(mux),
		ReadTimeout:       time.Second * 10,
		ReadHeaderTimeout: time.Second * 5,
		IdleTimeout:       time.Minute,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	// Connect the routes.
	routes.SetupRoutes(mux, searcher, tools.NewSSE("/messages"), config.OutputDir)

	if config.ImageTTL > 0 {
		go cleanUpImages(ctx, config.OutputDir, config.ImageTTL, logger)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", "http://"+config.Addr())
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server terminated with error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	return GracefulShutdown(server, logger)
}

// cleanUpImages removes rendered images older than ttl until ctx is done.
func cleanUpImages(ctx context.Context, dir string, ttl time.Duration, logger *slog.Logger) {
	interval := min(ttl, time.Minute)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := removeStaleImages(dir, ttl, time.Now())
			if removed > 0 {
				logger.Info("cleaned up generated images", "dir", dir, "removed", removed)
			}
		case <-ctx.Done():
			return
		}
	}
}

// removeStaleImages deletes .png files in dir last modified before now-ttl
// and returns how many were removed.
func removeStaleImages(dir string, ttl time.Duration, now time.Time) int {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	cutoff := now.Add(-ttl)
	removed := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".png") {
			continue
		}

		info, err := file.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		if os.Remove(filepath.Join(dir, file.Name())) == nil {
			removed++
		}
	}
	return removed
}

// Gracefully shuts down the server. The default timeout is 10 seconds
// To wait for pending connections.
func GracefulShutdown(server *http.Server, logger *slog.Logger, timeout ...time.Duration) error {
	var t time.Duration
	if len(timeout) > 0 {
		t = timeout[0]
	} else {
		t = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), t)
	defer cancel()

	logger.Info("shutting down the server")
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info("shutting down gracefully")
	return nil
}
