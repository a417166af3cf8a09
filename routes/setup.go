package routes

import (
	"net/http"

	"github.com/abiiranathan/kbsearch/mcp"
)

func SetupRoutes(mux *http.ServeMux, searcher Searcher, sse *mcp.SSE, pagesDir string) {
	// Search endpoint
	mux.HandleFunc("GET /search", Search(searcher))

	// MCP over server-sent events
	mux.HandleFunc("GET /sse", sse.Stream)
	mux.HandleFunc("POST /messages", sse.Messages)

	// Serve generated images
	mux.Handle("/pages/", http.StripPrefix("/pages/", http.FileServer(http.Dir(pagesDir))))
}
