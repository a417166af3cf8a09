package pdf

/*
#cgo pkg-config: glib-2.0 gio-2.0 cairo poppler-glib
#cgo LDFLAGS: -pthread

#include <cairo/cairo.h>
#include <locale.h>
#include <poppler/glib/poppler.h>
#include <pthread.h>
#include <stdlib.h>

enum {
	RENDER_OK = 0,
	RENDER_OPEN_FAILED,
	RENDER_PAGE_RANGE,
	RENDER_NO_PAGE,
	RENDER_SURFACE_FAILED,
	RENDER_WRITE_FAILED,
};

static pthread_mutex_t cairo_mutex = PTHREAD_MUTEX_INITIALIZER;

// Errors are handed back through errmsg (free with g_free), never printed:
// stdout may be carrying protocol messages.
PopplerDocument *open_document(const char *filename, int *num_pages, char **errmsg) {
	GFile *file = g_file_new_for_path(filename);
	if (file == NULL) {
		*errmsg = g_strdup("unable to create GFile");
		return NULL;
	}

	GError *error = NULL;
	GBytes *bytes = g_file_load_bytes(file, NULL, NULL, &error);
	g_object_unref(file);

	if (error != NULL) {
		*errmsg = g_strdup(error->message);
		g_clear_error(&error);
		return NULL;
	}

	PopplerDocument *doc = poppler_document_new_from_bytes(bytes, NULL, &error);
	g_bytes_unref(bytes);
	if (error != NULL) {
		*errmsg = g_strdup(error->message);
		g_clear_error(&error);
		return NULL;
	}

	*num_pages = poppler_document_get_n_pages(doc);
	return doc;
}

static int render_page_to_png(PopplerPage *page, double width, double height, double dpi, const char *output_file) {
	int pixel_width = (int)(width * dpi / 72.0);
	int pixel_height = (int)(height * dpi / 72.0);

	pthread_mutex_lock(&cairo_mutex);

	cairo_surface_t *surface = cairo_image_surface_create(CAIRO_FORMAT_ARGB32, pixel_width, pixel_height);
	if (cairo_surface_status(surface) != CAIRO_STATUS_SUCCESS) {
		cairo_surface_destroy(surface);
		pthread_mutex_unlock(&cairo_mutex);
		return RENDER_SURFACE_FAILED;
	}

	cairo_t *cr = cairo_create(surface);

	// White background, pages are transparent otherwise.
	cairo_set_source_rgb(cr, 1.0, 1.0, 1.0);
	cairo_paint(cr);

	// Disable anti-aliasing for text rendering to avoid blurriness.
	cairo_set_antialias(cr, CAIRO_ANTIALIAS_NONE);
	cairo_scale(cr, pixel_width / width, pixel_height / height);

	poppler_page_render(page, cr);
	cairo_destroy(cr);

	pthread_mutex_unlock(&cairo_mutex);

	cairo_status_t status = cairo_surface_write_to_png(surface, output_file);
	cairo_surface_destroy(surface);

	return status == CAIRO_STATUS_SUCCESS ? RENDER_OK : RENDER_WRITE_FAILED;
}

// Render a single page from a document. Avoids multiple cgo calls.
int render_page_from_document(const char *pdf_path, int page_num, double dpi, const char *output_png) {
	int num_pages = 0;
	char *errmsg = NULL;

	PopplerDocument *doc = open_document(pdf_path, &num_pages, &errmsg);
	if (doc == NULL) {
		g_free(errmsg);
		return RENDER_OPEN_FAILED;
	}

	if (page_num < 0 || page_num >= num_pages) {
		g_object_unref(doc);
		return RENDER_PAGE_RANGE;
	}

	PopplerPage *page = poppler_document_get_page(doc, page_num);
	if (page == NULL) {
		g_object_unref(doc);
		return RENDER_NO_PAGE;
	}

	double width, height;
	poppler_page_get_size(page, &width, &height);

	int status = render_page_to_png(page, width, height, dpi, output_png);
	g_object_unref(page);
	g_object_unref(doc);
	return status;
}
*/
import "C"
import (
	"errors"
	"fmt"
	"strings"
	"unsafe"
)

var (
	errPageRange = errors.New("page number is out of range of this document")
	errNoPage    = errors.New("poppler returned no page")
)

// Document is an open PDF document.
type Document struct {
	doc      *C.PopplerDocument
	Path     string
	NumPages int
}

// SetLocale sets the C locale to the system default so poppler decodes
// text as UTF-8.
func SetLocale() {
	empty := C.CString("")
	defer C.free(unsafe.Pointer(empty))
	C.setlocale(C.LC_ALL, empty)
}

// Open loads the whole file and parses it as a PDF.
func Open(path string) (*Document, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	var numPages C.int
	var cErr *C.char

	doc := C.open_document(cPath, &numPages, &cErr)
	if doc == nil {
		msg := "unknown error"
		if cErr != nil {
			msg = C.GoString(cErr)
			C.g_free(C.gpointer(cErr))
		}
		return nil, fmt.Errorf("unable to open %s: %s", path, msg)
	}

	return &Document{
		doc:      doc,
		NumPages: int(numPages),
		Path:     path,
	}, nil
}

func (pdf *Document) Close() {
	if pdf.doc != nil {
		C.g_object_unref(C.gpointer(pdf.doc))
		pdf.doc = nil
	}
}

// Page is a single page of an open Document.
type Page struct {
	page *C.PopplerPage

	doc     *Document
	PageNum int // zero-indexed

	Width  float64
	Height float64
}

// GetPage returns the zero-indexed page or nil if it is out of range or
// poppler cannot load it.
func (pdf *Document) GetPage(page int) *Page {
	if page < 0 || page >= pdf.NumPages {
		return nil
	}

	cPage := C.poppler_document_get_page(pdf.doc, C.int(page))
	if cPage == nil {
		return nil
	}

	p := &Page{
		doc:     pdf,
		page:    cPage,
		PageNum: page,
	}

	var width, height C.double
	C.poppler_page_get_size(p.page, &width, &height)
	p.Width = float64(width)
	p.Height = float64(height)
	return p
}

func (page *Page) Close() {
	if page.page != nil {
		C.g_object_unref(C.gpointer(page.page))
		page.page = nil
	}
}

// skipTokens are glyphs poppler emits for bullets and arrows.
var skipTokens = func() *strings.Replacer {
	var pairs []string
	for r := rune(0x25B6); r <= 0x25FF; r++ {
		pairs = append(pairs, string(r), "")
	}
	pairs = append(pairs, "\u0080", "", "\u0089", "")
	return strings.NewReplacer(pairs...)
}()

// Text returns the text content of the page.
func (page *Page) Text() string {
	gText := C.poppler_page_get_text(page.page)
	if gText == nil {
		return ""
	}
	defer C.g_free(C.gpointer(gText))

	return skipTokens.Replace(C.GoString((*C.char)(gText)))
}

// RenderPageToImage renders the zero-indexed page of the PDF at pdfPath to
// a PNG file at outPng, at the given resolution. Opens the document and
// renders in one cgo call.
func RenderPageToImage(pageNum int, pdfPath, outPng string, dpi float64) error {
	cOutput := C.CString(outPng)
	defer C.free(unsafe.Pointer(cOutput))

	cPath := C.CString(pdfPath)
	defer C.free(unsafe.Pointer(cPath))

	switch status := C.render_page_from_document(cPath, C.int(pageNum), C.double(dpi), cOutput); status {
	case C.RENDER_OK:
		return nil
	case C.RENDER_OPEN_FAILED:
		return fmt.Errorf("unable to open %s", pdfPath)
	case C.RENDER_PAGE_RANGE:
		return errPageRange
	case C.RENDER_NO_PAGE:
		return errNoPage
	case C.RENDER_SURFACE_FAILED:
		return errors.New("unable to create cairo surface")
	case C.RENDER_WRITE_FAILED:
		return fmt.Errorf("unable to write %s", outPng)
	default:
		return fmt.Errorf("render failed with status %d", int(status))
	}
}
