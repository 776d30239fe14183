package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/FranksOps/pdfsearch/internal/pdftest"
	"github.com/FranksOps/pdfsearch/internal/serp"
	"github.com/FranksOps/pdfsearch/internal/verify"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// fakeProvider returns canned results and records the last call.
type fakeProvider struct {
	results []serp.Result
	err     error

	query string
	safe  serp.SafeSearch
	limit int
	calls int
}

func (f *fakeProvider) Search(_ context.Context, query string, safe serp.SafeSearch, limit int) ([]serp.Result, error) {
	f.calls++
	f.query, f.safe, f.limit = query, safe, limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.results) {
		return f.results[:limit], nil
	}
	return f.results, nil
}

// docs serves documents keyed by path: a positive value is a page count,
// zero means an HTML page, negative means 404.
func docs(t *testing.T, pages map[string]int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, ok := pages[r.URL.Path]
		switch {
		case !ok || n < 0:
			http.NotFound(w, r)
		case n == 0:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(pdftest.Document(n))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newPipeline(t *testing.T, provider serp.Provider, tracer *tracetest.SpanRecorder) *Pipeline {
	t.Helper()
	d, err := NewDiscoverer(DiscovererConfig{Provider: provider})
	require.NoError(t, err)
	v, err := verify.NewValidator(verify.ValidatorConfig{})
	require.NoError(t, err)
	f, err := verify.NewPageFilter(verify.PageFilterConfig{TempDir: t.TempDir()})
	require.NoError(t, err)

	cfg := Config{Searcher: d, Validator: v, Filter: f}
	if tracer != nil {
		cfg.Tracer = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(tracer)).Tracer("test")
	}
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

func TestPipeline_EndToEnd(t *testing.T) {
	srv := docs(t, map[string]int{
		"/one.pdf":    1,
		"/twelve.pdf": 12,
		"/big.pdf":    25,
		"/page.pdf":   0,
		"/gone.pdf":   -1,
	})
	provider := &fakeProvider{}
	for _, p := range []string{"/one.pdf", "/twelve.pdf", "/big.pdf", "/page.pdf", "/gone.pdf"} {
		provider.results = append(provider.results, serp.Result{URL: srv.URL + p})
	}
	spans := tracetest.NewSpanRecorder()

	resp, err := newPipeline(t, provider, spans).Run(t.Context(), Request{
		Query:      "sample",
		NumResults: 5,
		Bounds:     verify.NewBounds(1, verify.Pages(20)),
	})
	require.NoError(t, err)

	want := []string{srv.URL + "/one.pdf", srv.URL + "/twelve.pdf"}
	if diff := cmp.Diff(want, resp.Links, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Found 2 valid PDFs.", resp.Message)
	assert.Equal(t, Stats{Discovered: 5, Validated: 3, Kept: 2, Filtered: true}, withoutElapsed(resp.Stats))

	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, "sample filetype:pdf", provider.query)
	assert.Equal(t, serp.SafeModerate, provider.safe)
	assert.Equal(t, 5, provider.limit)

	var names []string
	for _, s := range spans.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"pipeline.Discover", "pipeline.Validate", "pipeline.Filter", "pipeline.Run"}, names)
}

func withoutElapsed(s Stats) Stats {
	s.Elapsed = 0
	return s
}

func TestPipeline_NoBoundsSkipsFilter(t *testing.T) {
	srv := docs(t, map[string]int{"/a.pdf": 3, "/b.pdf": 40})
	provider := &fakeProvider{results: []serp.Result{{URL: srv.URL + "/a.pdf"}, {URL: srv.URL + "/b.pdf"}}}
	spans := tracetest.NewSpanRecorder()

	resp, err := newPipeline(t, provider, spans).Run(t.Context(), Request{Query: "x", NumResults: 10})
	require.NoError(t, err)

	assert.Len(t, resp.Links, 2)
	assert.Equal(t, "Found 2 valid PDFs.", resp.Message)
	assert.False(t, resp.Stats.Filtered)
	for _, s := range spans.Ended() {
		assert.NotEqual(t, "pipeline.Filter", s.Name())
	}
}

func TestPipeline_Messages(t *testing.T) {
	srv := docs(t, map[string]int{"/page.pdf": 0, "/big.pdf": 99})

	t.Run("nothing discovered", func(t *testing.T) {
		provider := &fakeProvider{results: []serp.Result{{URL: "https://example.com/index.html"}}}
		resp, err := newPipeline(t, provider, nil).Run(t.Context(), Request{Query: "x", NumResults: 3})
		require.NoError(t, err)
		assert.Equal(t, MessageNoResults, resp.Message)
		assert.NotNil(t, resp.Links)
		assert.Empty(t, resp.Links)
	})

	t.Run("nothing validated", func(t *testing.T) {
		provider := &fakeProvider{results: []serp.Result{{URL: srv.URL + "/page.pdf"}}}
		resp, err := newPipeline(t, provider, nil).Run(t.Context(), Request{Query: "x", NumResults: 3})
		require.NoError(t, err)
		assert.Equal(t, MessageNoValid, resp.Message)
		assert.Empty(t, resp.Links)
	})

	t.Run("everything filtered out", func(t *testing.T) {
		provider := &fakeProvider{results: []serp.Result{{URL: srv.URL + "/big.pdf"}}}
		resp, err := newPipeline(t, provider, nil).Run(t.Context(), Request{
			Query:      "x",
			NumResults: 3,
			Bounds:     verify.NewBounds(0, verify.Pages(10)),
		})
		require.NoError(t, err)
		assert.Equal(t, "Found 0 valid PDFs.", resp.Message)
		assert.NotNil(t, resp.Links)
		assert.Empty(t, resp.Links)
	})
}

func TestPipeline_SearchFailurePropagates(t *testing.T) {
	provider := &fakeProvider{err: serp.ErrChallenged}
	spans := tracetest.NewSpanRecorder()

	_, err := newPipeline(t, provider, spans).Run(t.Context(), Request{Query: "x", NumResults: 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, serp.ErrChallenged))

	for _, s := range spans.Ended() {
		if s.Name() == "pipeline.Run" {
			assert.Equal(t, codes.Error, s.Status().Code)
		}
	}
}

func TestPipeline_InvalidRequest(t *testing.T) {
	provider := &fakeProvider{}
	p := newPipeline(t, provider, nil)

	for _, req := range []Request{
		{Query: "", NumResults: 5},
		{Query: "   ", NumResults: 5},
		{Query: "x", NumResults: 0},
		{Query: "x", NumResults: -2},
	} {
		_, err := p.Run(t.Context(), req)
		assert.ErrorIs(t, err, ErrInvalidRequest, "request %+v", req)
	}
	assert.Zero(t, provider.calls)
}

func TestNew_MissingStage(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	d, _ := NewDiscoverer(DiscovererConfig{Provider: &fakeProvider{}})
	_, err = New(Config{Searcher: d})
	assert.ErrorContains(t, err, "validator")
}

func TestDiscoverer_FiltersByPath(t *testing.T) {
	provider := &fakeProvider{results: []serp.Result{
		{URL: "https://a.example/report.pdf"},
		{URL: "https://a.example/UPPER.PDF"},
		{URL: "https://a.example/download.pdf?token=1"},
		{URL: "https://a.example/page.html"},
		{URL: "https://a.example/pdf"},
		{URL: "https://a.example/index.html?file=x.pdf"},
		{URL: "://broken.pdf"},
	}}
	d, err := NewDiscoverer(DiscovererConfig{Provider: provider})
	require.NoError(t, err)

	links, err := d.Discover(t.Context(), "annual report", 10)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://a.example/report.pdf",
		"https://a.example/UPPER.PDF",
		"https://a.example/download.pdf?token=1",
	}, links)
	assert.Equal(t, "annual report filetype:pdf", provider.query)
}

func TestDiscoverer_Error(t *testing.T) {
	d, err := NewDiscoverer(DiscovererConfig{Provider: &fakeProvider{err: errors.New("quota exceeded")}})
	require.NoError(t, err)

	_, err = d.Discover(t.Context(), "x", 5)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "quota exceeded"))

	_, err = NewDiscoverer(DiscovererConfig{})
	assert.Error(t, err)
}
