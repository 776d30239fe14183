package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FranksOps/pdfsearch/internal/config"
	"github.com/FranksOps/pdfsearch/internal/pdftest"
	"github.com/FranksOps/pdfsearch/internal/pipeline"
	"github.com/FranksOps/pdfsearch/internal/report"
	"github.com/FranksOps/pdfsearch/internal/verify"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"
)

func TestPromptRequest(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    pipeline.Request
		wantErr bool
	}{
		{
			name:  "all answered",
			input: "go concurrency\n30\n5\n100\n",
			want: pipeline.Request{
				Query:      "go concurrency",
				NumResults: 30,
				Bounds:     verify.NewBounds(5, verify.Pages(100)),
			},
		},
		{
			name:  "blank answers take defaults",
			input: "sample\n\n\n\n",
			want:  pipeline.Request{Query: "sample", NumResults: 10},
		},
		{
			name:  "zero minimum with maximum",
			input: "sample\n5\n0\n3\n",
			want: pipeline.Request{
				Query:      "sample",
				NumResults: 5,
				Bounds:     verify.NewBounds(0, verify.Pages(3)),
			},
		},
		{
			name:  "input ends early",
			input: "sample",
			want:  pipeline.Request{Query: "sample", NumResults: 10},
		},
		{name: "missing keywords", input: "\n", wantErr: true},
		{name: "bad count", input: "sample\nlots\n", wantErr: true},
		{name: "zero count", input: "sample\n0\n", wantErr: true},
		{name: "bad maximum", input: "sample\n5\n1\nten\n", wantErr: true},
		{name: "negative minimum", input: "sample\n5\n-2\n\n", wantErr: true},
		{name: "negative maximum", input: "sample\n5\n0\n-3\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prompts bytes.Buffer
			got, err := promptRequest(bufio.NewReader(strings.NewReader(tt.input)), &prompts, 10)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, prompts.String(), "Enter keywords")
		})
	}
}

func newSearchFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("search", pflag.ContinueOnError)
	flags.IntP("num-results", "n", 0, "")
	flags.Int("min-pages", 0, "")
	flags.Int("max-pages", 0, "")
	flags.StringP("output", "o", "", "")
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestSearchConfig(t *testing.T) {
	base := config.Default()

	c, err := searchConfig(newSearchFlags(t), base)
	require.NoError(t, err)
	assert.Equal(t, base, c)

	c, err = searchConfig(newSearchFlags(t, "-n", "40", "--output", "json"), base)
	require.NoError(t, err)
	assert.Equal(t, 40, c.Search.NumResults)
	assert.Equal(t, "json", c.Output.Format)
	assert.Equal(t, 10, base.Search.NumResults)

	_, err = searchConfig(newSearchFlags(t, "-n", "0"), base)
	assert.Error(t, err)

	_, err = searchConfig(newSearchFlags(t, "--output", "pdf"), base)
	assert.Error(t, err)
}

func TestFlagRequest(t *testing.T) {
	req, err := flagRequest(newSearchFlags(t), []string{"go", "memory", "model"}, 10)
	require.NoError(t, err)
	assert.Equal(t, "go memory model", req.Query)
	assert.Equal(t, 10, req.NumResults)
	assert.False(t, req.Bounds.Active())

	req, err = flagRequest(newSearchFlags(t, "--max-pages", "0"), []string{"x"}, 10)
	require.NoError(t, err)
	require.NotNil(t, req.Bounds.Max, "an explicit zero maximum still bounds the range")
	assert.Equal(t, 0, *req.Bounds.Max)

	_, err = flagRequest(newSearchFlags(t, "--min-pages", "-1"), []string{"x"}, 10)
	assert.Error(t, err)
	_, err = flagRequest(newSearchFlags(t, "--max-pages", "-1"), []string{"x"}, 10)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(&buf, config.LogConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	l.Debug("hello", "k", "v")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "v", line["k"])

	buf.Reset()
	l, err = newLogger(&buf, config.LogConfig{Level: "warn", Format: "text"})
	require.NoError(t, err)
	l.Info("quiet")
	assert.Empty(t, buf.String())
	assert.True(t, l.Enabled(context.Background(), slog.LevelWarn))

	_, err = newLogger(io.Discard, config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestBuildProxies(t *testing.T) {
	tc := config.Default().Transport

	pool, err := buildProxies(tc)
	require.NoError(t, err)
	assert.Nil(t, pool)

	file := filepath.Join(t.TempDir(), "proxies.txt")
	require.NoError(t, os.WriteFile(file, []byte("# pool\n127.0.0.1:9001\n"), 0o600))
	tc.Proxies = []string{"http://127.0.0.1:9000"}
	tc.ProxyFile = file
	pool, err = buildProxies(tc)
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Len())

	tc.ProxyFile = filepath.Join(t.TempDir(), "missing.txt")
	_, err = buildProxies(tc)
	assert.Error(t, err)
}

func TestBuildPipeline_RejectsBadConfig(t *testing.T) {
	c := config.Default()
	c.Transport.UserAgentMode = "shuffle"
	_, _, err := buildPipeline(c, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)

	c = config.Default()
	c.Filter.TempDir = filepath.Join(t.TempDir(), "missing")
	_, _, err = buildPipeline(c, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

// newFixture serves a DuckDuckGo HTML results page pointing at a document
// server holding a 3 page PDF, a 12 page PDF, an HTML page behind a .pdf
// path and a plain text file.
func newFixture(t *testing.T) (searchURL, docsURL string) {
	t.Helper()

	docs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/p3.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write(pdftest.Document(3))
		case "/p12.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write(pdftest.Document(12))
		case "/page.pdf":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html><body>not a pdf</body></html>")
		case "/notes.txt":
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, "notes")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(docs.Close)

	var results strings.Builder
	for _, p := range []string{"/p3.pdf", "/page.pdf", "/notes.txt", "/p12.pdf"} {
		fmt.Fprintf(&results, `<div class="result results_links web-result">
  <h2 class="result__title"><a class="result__a" href="//duckduckgo.com/l/?uddg=%s&amp;rut=x">%s</a></h2>
</div>`, url.QueryEscape(docs.URL+p), p)
	}
	ddg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>"+results.String()+"</body></html>")
	}))
	t.Cleanup(ddg.Close)

	return ddg.URL + "/html/", docs.URL
}

func TestPipelineFromConfig(t *testing.T) {
	searchURL, docsURL := newFixture(t)

	c := config.Default()
	c.Search.BaseURL = searchURL
	c.Filter.TempDir = t.TempDir()

	p, client, err := buildPipeline(c, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer client.Close()

	resp, err := p.Run(context.Background(), pipeline.Request{
		Query:      "sample",
		NumResults: 10,
		Bounds:     verify.NewBounds(5, nil),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{docsURL + "/p12.pdf"}, resp.Links)
	assert.Equal(t, "Found 1 valid PDFs.", resp.Message)
	assert.Equal(t, 3, resp.Stats.Discovered)
	assert.Equal(t, 2, resp.Stats.Validated)

	entries, err := os.ReadDir(c.Filter.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestSearchCommand(t *testing.T) {
	searchURL, docsURL := newFixture(t)
	t.Setenv("PDFSEARCH_SEARCH_BASE_URL", searchURL)
	t.Setenv("PDFSEARCH_FILTER_TEMP_DIR", t.TempDir())

	out := execute(t, "search", "--output", "json", "--min-pages", "2", "--max-pages", "20", "sample", "docs")

	var summary report.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, "sample docs", summary.Query)
	assert.Equal(t, []string{docsURL + "/p3.pdf", docsURL + "/p12.pdf"}, summary.Links)
	assert.Equal(t, "Found 2 valid PDFs.", summary.Message)
	assert.True(t, summary.Filtered)

	out = execute(t, "search", "--output", "text", "--min-pages", "100", "--max-pages", "200", "sample")
	assert.Equal(t, messageNoneInRange+"\n", out)
}

func TestVersionCommand(t *testing.T) {
	assert.Equal(t, "pdfsearch dev\n", execute(t, "version"))
}

func TestConfigCommand(t *testing.T) {
	out := execute(t, "config", "--defaults")

	var got config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	if diff := cmp.Diff(config.Default(), got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("config --defaults mismatch (-want +got):\n%s", diff)
	}
}
