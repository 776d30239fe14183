package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/FranksOps/pdfsearch/internal/pipeline"
	"github.com/FranksOps/pdfsearch/internal/verify"
)

// Searcher runs one retrieval. *pipeline.Pipeline implements it.
type Searcher interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
}

type searchResponse struct {
	Links   []string `json:"links"`
	Message string   `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type searchHandler struct {
	searcher          Searcher
	defaultNumResults int
	logger            *slog.Logger
}

// ServeHTTP handles GET /api/search?query=&num_results=&min_pages=&max_pages=.
func (h *searchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := h.parse(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: err.Error()})
		return
	}

	resp, err := h.searcher.Run(r.Context(), req)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidRequest) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: err.Error()})
			return
		}
		h.logger.Error("search failed", "query", req.Query, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}

	links := resp.Links
	if links == nil {
		links = []string{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Links: links, Message: resp.Message})
}

func (h *searchHandler) parse(r *http.Request) (pipeline.Request, error) {
	q := r.URL.Query()

	query := strings.TrimSpace(q.Get("query"))
	if query == "" {
		return pipeline.Request{}, errors.New("query is required")
	}

	numResults, err := intParam(q.Get("num_results"), h.defaultNumResults, "num_results")
	if err != nil {
		return pipeline.Request{}, err
	}
	if numResults <= 0 {
		return pipeline.Request{}, fmt.Errorf("num_results must be positive, got %d", numResults)
	}

	minPages, err := intParam(q.Get("min_pages"), 0, "min_pages")
	if err != nil {
		return pipeline.Request{}, err
	}
	if minPages < 0 {
		return pipeline.Request{}, fmt.Errorf("min_pages must not be negative, got %d", minPages)
	}

	var maxPages *int
	if raw := strings.TrimSpace(q.Get("max_pages")); raw != "" {
		n, err := intParam(raw, 0, "max_pages")
		if err != nil {
			return pipeline.Request{}, err
		}
		if n < 0 {
			return pipeline.Request{}, fmt.Errorf("max_pages must not be negative, got %d", n)
		}
		maxPages = &n
	}

	return pipeline.Request{
		Query:      query,
		NumResults: numResults,
		Bounds:     verify.NewBounds(minPages, maxPages),
	}, nil
}

func intParam(raw string, fallback int, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	return n, nil
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
