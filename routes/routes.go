package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/abiiranathan/kbsearch/search"
)

// Searcher runs a search over the documents directory.
type Searcher interface {
	Search(ctx context.Context, query string) (*search.Report, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps search errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, search.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, search.ErrNoDocuments):
		return http.StatusNotFound
	case errors.Is(err, search.ErrCorpusUnreadable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func Search(searcher Searcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")

		report, err := searcher.Search(r.Context(), query)
		if err != nil {
			status := statusFor(err)
			message := err.Error()
			if status == http.StatusInternalServerError {
				message = "An error occurred while searching"
			}

			writeJSON(w, status, map[string]string{
				"message": message,
			})
			return
		}

		writeJSON(w, http.StatusOK, report)
	}
}
