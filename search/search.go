package search

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidQuery is returned for a query without any searchable term.
	ErrInvalidQuery = errors.New("invalid query: provide at least one search term")

	// ErrNoDocuments is returned when the documents directory is missing or
	// holds no file of a supported type.
	ErrNoDocuments = errors.New("no documents found")

	// ErrCorpusUnreadable is returned when documents exist but none of them
	// could be opened.
	ErrCorpusUnreadable = errors.New("no document could be read")

	// Per-item failures. Search absorbs these; they never reach the caller.
	ErrDocumentUnreadable = errors.New("document unreadable")
	ErrPageExtraction     = errors.New("page text extraction failed")
	ErrRenderFailed       = errors.New("page render failed")
)

// Extractor produces the text of every page of a document.
//
// Extract returns an error wrapping ErrDocumentUnreadable if the document
// cannot be opened. The returned sequence yields (page number, text) pairs
// with 1-based page numbers; a page whose text cannot be extracted yields
// an empty string.
type Extractor interface {
	Extract(path string) (iter.Seq2[int, string], error)
}

// Renderer turns one page of a document into an image on disk and returns
// the image path. The path depends only on (path, page).
type Renderer interface {
	Render(ctx context.Context, path string, page int) (string, error)
}

// ScoredPage is a page with a positive relevance score for the current query.
type ScoredPage struct {
	Document string // Path to the document on disk.
	Page     int    // 1-based page number.
	Score    int
	Text     string
}

// Result is one selected page as returned to callers.
type Result struct {
	Document string `json:"document"` // Path to the document.
	Source   string `json:"source"`   // Base name of the document.
	Page     int    `json:"page"`
	Score    int    `json:"score"`
	Excerpt  string `json:"excerpt"`
	Image    string `json:"path"` // Path to the rendered page image.
}

// Report is the outcome of a single search.
type Report struct {
	Query          string   `json:"query"`
	Terms          []string `json:"terms"`
	Results        []Result `json:"results"`
	Documents      int      `json:"documents"`
	Skipped        []string `json:"skipped,omitempty"`
	RenderFailures int      `json:"render_failures,omitempty"`
	Note           string   `json:"note,omitempty"`
}

// Options configures a Searcher.
type Options struct {
	DocumentsDir  string   // Directory scanned on every search.
	Extensions    []string // Lower-case file extensions to scan, with the dot.
	TopK          int      // Maximum number of results.
	Window        int      // Excerpt size in characters.
	Highlight     bool     // Wrap matched terms in excerpts with "**".
	DropStopwords bool     // Remove stopwords from the query terms.
	Language      string   // Stopword language code.
	Concurrency   int      // Documents extracted (and pages rendered) at a time.
}

const (
	DefaultTopK   = 5
	DefaultWindow = 200
)

func (o Options) withDefaults() Options {
	exts := make([]string, 0, len(o.Extensions))
	for _, ext := range o.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = []string{".pdf"}
	}
	o.Extensions = exts

	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.Language == "" {
		o.Language = "en"
	}
	if o.Concurrency <= 0 {
		o.Concurrency = runtime.NumCPU()
	}
	return o
}

// Searcher answers queries against a directory of documents.
// It keeps no state between searches and is safe for concurrent use.
type Searcher struct {
	opts      Options
	extractor Extractor
	renderer  Renderer
	logger    *slog.Logger
}

func NewSearcher(opts Options, extractor Extractor, renderer Renderer, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		opts:      opts.withDefaults(),
		extractor: extractor,
		renderer:  renderer,
		logger:    logger,
	}
}

// Options returns the effective options of the searcher.
func (s *Searcher) Options() Options {
	return s.opts
}

// Search scans every document, ranks the pages against query and renders
// the best ones.
//
// Only ErrInvalidQuery, ErrNoDocuments, ErrCorpusUnreadable and context
// errors are returned. Unreadable documents and failed renders are logged
// and reported in the Report. A query that matches nothing yields a Report
// with no results.
func (s *Searcher) Search(ctx context.Context, query string) (*Report, error) {
	start := time.Now()

	terms := ParseQuery(query)
	if s.opts.DropStopwords {
		terms = DropStopwords(terms, s.opts.Language)
	}
	if len(terms) == 0 {
		return nil, ErrInvalidQuery
	}

	dir := s.opts.DocumentsDir
	files, err := WalkDir(dir, s.opts.Extensions, func(path string, err error) {
		s.logger.Warn("skipping unreadable path", "path", path, "err", err)
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: directory %s does not exist", ErrNoDocuments, dir)
		}
		return nil, fmt.Errorf("%w: unable to list %s: %v", ErrNoDocuments, dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, dir)
	}

	s.logger.Debug("scanning documents", "query", query, "terms", terms, "documents", len(files))

	scored, skipped, err := s.scoreDocuments(ctx, files, terms)
	if err != nil {
		return nil, err
	}
	if len(skipped) == len(files) {
		return nil, fmt.Errorf("%w: all %d document(s) in %s failed to open", ErrCorpusUnreadable, len(files), dir)
	}

	report := &Report{
		Query:     query,
		Terms:     terms,
		Results:   []Result{},
		Documents: len(files) - len(skipped),
		Skipped:   skipped,
	}

	top := Rank(scored, s.opts.TopK)
	if len(top) == 0 {
		report.Note = "no relevant pages found"
		s.logger.Info("search finished", "query", query, "documents", report.Documents,
			"results", 0, "took", time.Since(start).String())
		return report, nil
	}

	results, failures, err := s.render(ctx, top, terms)
	if err != nil {
		return nil, err
	}
	report.Results = results
	report.RenderFailures = failures

	switch {
	case failures > 0 && len(results) == 0:
		report.Note = fmt.Sprintf("%d relevant page(s) found but none could be rendered", len(top))
	case failures > 0:
		report.Note = fmt.Sprintf("%d relevant page(s) could not be rendered", failures)
	}

	s.logger.Info("search finished", "query", query, "documents", report.Documents,
		"candidates", len(scored), "results", len(results), "took", time.Since(start).String())
	return report, nil
}

type documentScan struct {
	pages []ScoredPage
	err   error
}

// scoreDocuments extracts and scores documents with at most
// opts.Concurrency documents in flight. Pages are returned in document
// order, then page order, whatever the scheduling. Cancellation is checked
// before a document starts, never while it is being read.
func (s *Searcher) scoreDocuments(ctx context.Context, files []string, terms []string) ([]ScoredPage, []string, error) {
	scans := make([]documentScan, len(files))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)

	for i, file := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			scans[i] = s.scoreDocument(file, terms)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("search abandoned: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("search abandoned: %w", err)
	}

	var scored []ScoredPage
	var skipped []string
	for i, scan := range scans {
		if scan.err != nil {
			s.logger.Warn("skipping unreadable document", "path", files[i], "err", scan.err)
			skipped = append(skipped, files[i])
			continue
		}
		scored = append(scored, scan.pages...)
	}
	return scored, skipped, nil
}

func (s *Searcher) scoreDocument(path string, terms []string) documentScan {
	pages, err := s.extractor.Extract(path)
	if err != nil {
		return documentScan{err: err}
	}

	var scored []ScoredPage
	for num, text := range pages {
		if score := Score(text, terms); score > 0 {
			scored = append(scored, ScoredPage{
				Document: path,
				Page:     num,
				Score:    score,
				Text:     text,
			})
		}
	}
	return documentScan{pages: scored}
}

// render renders the selected pages and assembles results in rank order.
// Pages that fail to render are dropped and counted.
func (s *Searcher) render(ctx context.Context, top []ScoredPage, terms []string) ([]Result, int, error) {
	images := make([]string, len(top))
	errs := make([]error, len(top))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, page := range top {
		g.Go(func() error {
			images[i], errs[i] = s.renderer.Render(ctx, page.Document, page.Page)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, 0, fmt.Errorf("search abandoned: %w", err)
	}

	results := make([]Result, 0, len(top))
	failures := 0
	for i, page := range top {
		if errs[i] != nil {
			failures++
			s.logger.Warn("dropping page that failed to render",
				"path", page.Document, "page", page.Page, "err", errs[i])
			continue
		}

		results = append(results, Result{
			Document: page.Document,
			Source:   filepath.Base(page.Document),
			Page:     page.Page,
			Score:    page.Score,
			Excerpt:  Excerpt(page.Text, terms, s.opts.Window, s.opts.Highlight),
			Image:    images[i],
		})
	}
	return results, failures, nil
}
