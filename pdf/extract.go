package pdf

import (
	"context"
	"fmt"
	"hash/fnv"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/abiiranathan/kbsearch/search"
)

// Extractor reads page text from PDF files with poppler.
type Extractor struct {
	Logger *slog.Logger
}

// PageText returns the text of the zero-indexed page.
func (pdf *Document) PageText(page int) (string, error) {
	p := pdf.GetPage(page)
	if p == nil {
		return "", fmt.Errorf("%w: page %d of %s", search.ErrPageExtraction, page+1, pdf.Path)
	}
	defer p.Close()
	return p.Text(), nil
}

// Extract opens the document at path and returns its pages as (1-based
// page number, text) pairs. Text is read lazily while ranging. The
// document is closed when a range over the sequence ends and opened again
// if the sequence is ranged over a second time. A sequence must not be
// ranged over from more than one goroutine at a time.
func (e Extractor) Extract(path string) (iter.Seq2[int, string], error) {
	doc, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", search.ErrDocumentUnreadable, err)
	}

	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(yield func(int, string) bool) {
		if doc == nil {
			if doc, err = Open(path); err != nil {
				logger.Warn("unable to reopen document", "path", path, "err", err)
				return
			}
		}
		defer func() {
			doc.Close()
			doc = nil
		}()

		for page := range doc.NumPages {
			text, err := doc.PageText(page)
			if err != nil {
				logger.Debug("empty page text", "err", err)
			}
			if !yield(page+1, text) {
				return
			}
		}
	}, nil
}

// Renderer writes page images as PNG files into OutputDir.
type Renderer struct {
	OutputDir string
	DPI       float64
}

// DefaultDPI is the resolution used when Renderer.DPI is not set.
const DefaultDPI = 150

// PathHash returns the FNV-1a hash of a document path.
func PathHash(path string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(filepath.Clean(path)))
	return h.Sum32()
}

// ImageName is the file name of the image of a 1-based page of the
// document at path. Same document and page always give the same name.
func ImageName(path string, page int) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return fmt.Sprintf("%s_%08x_page_%d.png", stem, PathHash(path), page)
}

// Render renders the 1-based page of the document at path and returns the
// path of the image. The image is written to a temporary file first and
// renamed into place, so concurrent renders of the same page never leave
// a partial file behind.
func (r *Renderer) Render(ctx context.Context, path string, page int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", search.ErrRenderFailed, err)
	}

	out := filepath.Join(r.OutputDir, ImageName(path, page))

	tmp, err := os.CreateTemp(r.OutputDir, ".render-*.png")
	if err != nil {
		return "", fmt.Errorf("%w: %v", search.ErrRenderFailed, err)
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	dpi := r.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	if err := RenderPageToImage(page-1, path, tmp.Name(), dpi); err != nil {
		return "", fmt.Errorf("%w: page %d of %s: %v", search.ErrRenderFailed, page, path, err)
	}

	// Temp files are created 0600; images are read by other processes.
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", search.ErrRenderFailed, err)
	}

	if err := os.Rename(tmp.Name(), out); err != nil {
		return "", fmt.Errorf("%w: %v", search.ErrRenderFailed, err)
	}
	return out, nil
}
