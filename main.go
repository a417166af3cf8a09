package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/abiiranathan/kbsearch/cli"
	"github.com/abiiranathan/kbsearch/mcp"
	"github.com/abiiranathan/kbsearch/pdf"
	"github.com/abiiranathan/kbsearch/search"
	"github.com/abiiranathan/kbsearch/server"
)

const (
	appName    = "kbsearch"
	appVersion = "0.1.0"
)

// Configuration for the CLI, filled by the config file, the
// environment and the command line in that order.
var config cli.Config

// newSearcher builds a searcher over the configured documents directory.
// Logs go to stderr: stdout carries search output and MCP messages.
func newSearcher() (*search.Searcher, *slog.Logger) {
	if err := config.Validate(); err != nil {
		log.Fatalln(err)
	}

	logger := cli.NewLogger(&config, os.Stderr)
	renderer := &pdf.Renderer{
		OutputDir: config.OutputDir,
		DPI:       float64(config.DPI),
	}
	extractor := pdf.Extractor{Logger: logger}
	return search.NewSearcher(config.SearchOptions(), extractor, renderer, logger), logger
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runSearch() {
	searcher, _ := newSearcher()

	ctx, stop := signalContext()
	defer stop()

	report, err := searcher.Search(ctx, config.Query)
	if err != nil {
		log.Fatalln(err)
	}
	cli.PrintReport(os.Stdout, report)
}

func serveStdio() {
	searcher, logger := newSearcher()
	tools := mcp.NewServer(searcher, logger, appName, appVersion)

	ctx, stop := signalContext()
	defer stop()

	logger.Info("serving MCP over stdio", "documents", config.DocumentsDir, "output", config.OutputDir)

	// Reads from stdin do not observe ctx, so stop waiting on a signal.
	errCh := make(chan error, 1)
	go func() {
		errCh <- tools.ServeStdio(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalln(err)
		}
	case <-ctx.Done():
		logger.Info("received signal, shutting down")
	}
}

func startServer() {
	searcher, logger := newSearcher()
	tools := mcp.NewServer(searcher, logger, appName, appVersion)

	ctx, stop := signalContext()
	defer stop()

	if err := server.Run(ctx, &config, searcher, tools, logger); err != nil {
		log.Fatalln(err)
	}
}

func main() {
	log.SetPrefix("[kbsearch]: ")
	log.SetFlags(log.Lshortfile)

	// Set the locale to the system's default
	pdf.SetLocale()

	if err := cli.LoadEnvFile(); err != nil {
		log.Fatalln(err)
	}

	var err error
	config, err = cli.LoadConfig(cli.ConfigPath())
	if err != nil {
		log.Fatalln(err)
	}

	// Parse the command line arguments
	ctx := cli.DefineFlags(&config, cli.Commands{
		Search:    runSearch,
		Serve:     serveStdio,
		RunServer: startServer,
	})
	subcmd, err := ctx.Parse(os.Args)
	if err != nil {
		log.Fatalln(err)
	}

	// If the subcommand is nil, print the usage and exit
	if subcmd == nil {
		ctx.PrintUsage(os.Stdout)
		os.Exit(1)
	}

	// Run the subcommand
	subcmd.Handler()
}
