package cli

import (
	"fmt"
	"io"

	"github.com/abiiranathan/goflag"
	"github.com/abiiranathan/kbsearch/search"
)

// Commands are the handlers run by the subcommands.
type Commands struct {
	Search    func()
	Serve     func()
	RunServer func()
}

// PrintReport writes a search report in a human readable form.
func PrintReport(w io.Writer, report *search.Report) {
	for _, r := range report.Results {
		fmt.Fprintf(w, "%s Page: %d Score: %d\n", r.Source, r.Page, r.Score)
		fmt.Fprintf(w, "  Image: %s\n", r.Image)
		fmt.Fprintf(w, "  %s\n", r.Excerpt)
	}

	for _, doc := range report.Skipped {
		fmt.Fprintf(w, "Skipped unreadable document: %s\n", doc)
	}

	if report.Note != "" {
		fmt.Fprintln(w, report.Note)
	}
}

func DefineFlags(config *Config, cmds Commands) *goflag.Context {
	// Flags required by multiple subcomands
	documentsFlag := goflag.Flag{
		FlagType:  goflag.FlagString,
		Name:      "documents",
		ShortName: "d",
		Value:     &config.DocumentsDir,
		Usage:     "The directory of PDF files to search",
		Required:  false,
		Validator: nil,
	}

	outputFlag := goflag.Flag{
		FlagType:  goflag.FlagString,
		Name:      "output",
		ShortName: "o",
		Value:     &config.OutputDir,
		Usage:     "The directory to write rendered page images to",
		Required:  false,
		Validator: nil,
	}

	topFlag := goflag.Flag{
		FlagType:  goflag.FlagInt,
		Name:      "top",
		ShortName: "k",
		Value:     &config.TopK,
		Usage:     "The maximum number of pages to return",
		Required:  false,
		Validator: nil,
	}

	dpiFlag := goflag.Flag{
		FlagType:  goflag.FlagInt,
		Name:      "dpi",
		ShortName: "r",
		Value:     &config.DPI,
		Usage:     "The resolution of rendered page images",
		Required:  false,
		Validator: nil,
	}

	// Create flag context.
	ctx := goflag.NewContext()

	// global flags
	ctx.AddFlag(goflag.FlagInt, "concurrency", "c",
		&config.MaxConcurrency,
		"No of concurrent files to be processed at once",
		false, goflag.Min(1), goflag.Max(100))

	ctx.AddFlag(goflag.FlagString, "log-level", "l",
		&config.LogLevel, "Log level: debug, info, warn or error", false)

	// register subcommands
	ctx.AddSubCommand("search", "Search the documents directory and render the best pages", cmds.Search).
		AddFlag(goflag.FlagString, "query", "q", &config.Query, "The search query", true).
		AddFlagPtr(&documentsFlag).
		AddFlagPtr(&outputFlag).
		AddFlagPtr(&topFlag).
		AddFlagPtr(&dpiFlag)

	ctx.AddSubCommand("serve", "Serve the knowledge base tool over MCP stdio", cmds.Serve).
		AddFlagPtr(&documentsFlag).
		AddFlagPtr(&outputFlag).
		AddFlagPtr(&topFlag).
		AddFlagPtr(&dpiFlag)

	// Run server
	ctx.AddSubCommand("runserver", "Start an Http server with search and MCP over SSE", cmds.RunServer).
		AddFlag(goflag.FlagInt, "port", "p", &config.Port, "The port to run the server on", false).
		AddFlag(goflag.FlagString, "host", "H", &config.Host, "The host to bind the server to", false).
		AddFlagPtr(&documentsFlag).
		AddFlagPtr(&outputFlag).
		AddFlagPtr(&topFlag).
		AddFlagPtr(&dpiFlag)

	return ctx
}
