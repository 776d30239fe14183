package serp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/FranksOps/pdfsearch/pkg/useragent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultHTML(title, target string) string {
	return fmt.Sprintf(`<div class="result results_links web-result">
  <h2 class="result__title"><a class="result__a" href="//duckduckgo.com/l/?uddg=%s&amp;rut=abc">%s</a></h2>
  <a class="result__snippet">snippet for %s</a>
</div>`, url.QueryEscape(target), title, title)
}

const nextForm = `<div class="nav-link"><form action="/html/" method="post">
  <input type="submit" class="btn" value="Next" />
  <input type="hidden" name="q" value="sample filetype:pdf" />
  <input type="hidden" name="s" value="10" />
  <input type="hidden" name="dc" value="11" />
  <input type="hidden" name="kl" value="wt-wt" />
</form></div>`

type fakeDDG struct {
	mu    sync.Mutex
	forms []url.Values
	pages map[string]string
}

func (f *fakeDDG) handler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.forms = append(f.forms, r.PostForm)
	f.mu.Unlock()

	page, ok := f.pages[r.PostForm.Get("s")]
	if !ok {
		page = `<div class="no-results">No results.</div>`
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, "<html><body>"+page+"</body></html>")
}

func (f *fakeDDG) submitted() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.forms...)
}

func newTestProvider(t *testing.T, h http.HandlerFunc) *DuckDuckGo {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	p, err := NewDuckDuckGo(DuckDuckGoConfig{
		BaseURL:    ts.URL + "/html/",
		UserAgents: useragent.NewPool(useragent.ModeFixed, []string{"TestBrowser/1.0"}),
	})
	require.NoError(t, err)
	return p
}

func TestDuckDuckGo_SearchPaginates(t *testing.T) {
	fake := &fakeDDG{pages: map[string]string{
		"": resultHTML("A", "https://a.example/a.pdf") +
			`<div class="result result--ad"><a class="result__a" href="https://ads.example/buy.pdf">Ad</a></div>` +
			resultHTML("B", "https://b.example/b.pdf") + nextForm,
		"10": resultHTML("B again", "https://b.example/b.pdf") +
			resultHTML("C", "https://c.example/page.html"),
	}}
	p := newTestProvider(t, fake.handler)

	results, err := p.Search(context.Background(), "sample filetype:pdf", SafeModerate, 10)
	require.NoError(t, err)

	var urls []string
	for _, r := range results {
		urls = append(urls, r.URL)
	}
	assert.Equal(t, []string{
		"https://a.example/a.pdf",
		"https://b.example/b.pdf",
		"https://c.example/page.html",
	}, urls)
	assert.Equal(t, "A", results[0].Title)
	assert.Equal(t, "snippet for A", results[0].Snippet)

	forms := fake.submitted()
	require.Len(t, forms, 2)
	assert.Equal(t, "sample filetype:pdf", forms[0].Get("q"))
	assert.Equal(t, "-1", forms[0].Get("kp"))
	assert.Equal(t, "wt-wt", forms[0].Get("kl"))
	assert.Equal(t, "10", forms[1].Get("s"))
	assert.Equal(t, "-1", forms[1].Get("kp"))
}

func TestDuckDuckGo_SearchRespectsLimit(t *testing.T) {
	fake := &fakeDDG{pages: map[string]string{
		"": resultHTML("A", "https://a.example/a.pdf") +
			resultHTML("B", "https://b.example/b.pdf") + nextForm,
	}}
	p := newTestProvider(t, fake.handler)

	results, err := p.Search(context.Background(), "sample", SafeStrict, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://a.example/a.pdf", results[0].URL)
	forms := fake.submitted()
	require.Len(t, forms, 1, "limit reached on first page, no second request")
	assert.Equal(t, "1", forms[0].Get("kp"))
}

func TestDuckDuckGo_EmptyResultsIsNotAnError(t *testing.T) {
	p := newTestProvider(t, (&fakeDDG{}).handler)

	results, err := p.Search(context.Background(), "nothing here", SafeOff, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDuckDuckGo_Challenge(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `<div class="anomaly-modal__title">Unfortunately, bots use DuckDuckGo too.</div>`)
	})

	_, err := p.Search(context.Background(), "sample", SafeModerate, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChallenged))
}

func TestDuckDuckGo_HTTPError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := p.Search(context.Background(), "sample", SafeModerate, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestDuckDuckGo_BadInput(t *testing.T) {
	p := newTestProvider(t, (&fakeDDG{}).handler)

	_, err := p.Search(context.Background(), "   ", SafeModerate, 5)
	assert.Error(t, err)

	_, err = p.Search(context.Background(), "sample", SafeModerate, -1)
	assert.Error(t, err)

	results, err := p.Search(context.Background(), "sample", SafeModerate, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDuckDuckGo_SendsUserAgent(t *testing.T) {
	var (
		mu  sync.Mutex
		got string
	)
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = r.Header.Get("User-Agent")
		mu.Unlock()
		fmt.Fprint(w, "<html></html>")
	})

	_, err := p.Search(context.Background(), "sample", SafeModerate, 5)
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "TestBrowser/1.0", got)
}

func TestUnwrapLink(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fx.example%2Fdoc.pdf&rut=1", "https://x.example/doc.pdf"},
		{"/l/?uddg=http%3A%2F%2Fy.example%2Fz.pdf", "http://y.example/z.pdf"},
		{"https://direct.example/file.pdf", "https://direct.example/file.pdf"},
		{"javascript:void(0)", ""},
		{"//duckduckgo.com/l/?rut=1", ""},
	}
	for _, tt := range tests {
		if got := unwrapLink(tt.in); got != tt.want {
			t.Errorf("unwrapLink(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseSafeSearch(t *testing.T) {
	s, err := ParseSafeSearch("")
	require.NoError(t, err)
	assert.Equal(t, SafeModerate, s)

	_, err = ParseSafeSearch("extreme")
	assert.Error(t, err)

	assert.True(t, strings.HasPrefix(safeParam(SafeOff), "-"))
}
