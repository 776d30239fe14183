package report

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	texttemplate "text/template"
	"time"

	"github.com/FranksOps/pdfsearch/internal/pipeline"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Format selects a renderer.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatHTML  Format = "html"
)

// ParseFormat converts a flag value. Empty means FormatText.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatTable, FormatHTML:
		return Format(s), nil
	}
	return "", fmt.Errorf("report: unknown format %q", s)
}

// Summary is one finished search, ready for rendering.
type Summary struct {
	Query      string        `json:"query"`
	Message    string        `json:"message"`
	Links      []string      `json:"links"`
	Discovered int           `json:"discovered"`
	Validated  int           `json:"validated"`
	Filtered   bool          `json:"filtered"`
	Duration   time.Duration `json:"duration_ns"`
}

// FromResponse builds a Summary from a pipeline response.
func FromResponse(query string, resp *pipeline.Response) Summary {
	s := Summary{Query: query, Links: []string{}}
	if resp == nil {
		return s
	}
	s.Message = resp.Message
	if resp.Links != nil {
		s.Links = resp.Links
	}
	s.Discovered = resp.Stats.Discovered
	s.Validated = resp.Stats.Validated
	s.Filtered = resp.Stats.Filtered
	s.Duration = resp.Stats.Elapsed
	return s
}

// Write renders summary in format.
func Write(w io.Writer, format Format, summary Summary) error {
	switch format {
	case "", FormatText:
		return WriteText(w, summary)
	case FormatJSON:
		return WriteJSON(w, summary)
	case FormatTable:
		return WriteTable(w, summary)
	case FormatHTML:
		return WriteHTML(w, summary)
	}
	return fmt.Errorf("report: unknown format %q", format)
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: json: %w", err)
	}
	return nil
}

// WriteText writes the message followed by a numbered list of links.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `{{.Message}}
{{- if .Links}}

PDF files found:
{{- range $i, $link := .Links}}
{{inc $i}}. {{$link}}
{{- end}}
{{- end}}
`

	t, err := texttemplate.New("textReport").Funcs(texttemplate.FuncMap{"inc": inc}).Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: text: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: text: %w", err)
	}

	return nil
}

// WriteTable renders the links as a rounded table with a stage summary footer.
func WriteTable(w io.Writer, summary Summary) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(summary.Message)
	t.AppendHeader(table.Row{"#", "Link"})

	for i, link := range summary.Links {
		t.AppendRow(table.Row{i + 1, link})
	}

	t.AppendFooter(table.Row{"", fmt.Sprintf("discovered %d, validated %d, kept %d", summary.Discovered, summary.Validated, len(summary.Links))})
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

// WriteHTML writes a basic HTML page listing the links.
func WriteHTML(w io.Writer, summary Summary) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>PDF Search: {{.Query}}</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
</style>
</head>
<body>
  <h1>{{.Query}}</h1>
  <p>{{.Message}}</p>

  <div class="stat-card">
    <div>Discovered</div>
    <div class="stat-val">{{.Discovered}}</div>
  </div>
  <div class="stat-card">
    <div>Validated</div>
    <div class="stat-val">{{.Validated}}</div>
  </div>
  <div class="stat-card">
    <div>Kept</div>
    <div class="stat-val">{{len .Links}}</div>
  </div>

  <ol>
    {{- range .Links}}
    <li><a href="{{.}}">{{.}}</a></li>
    {{- else}}
    <li>None</li>
    {{- end}}
  </ol>
</body>
</html>
`
	t, err := template.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("report: html: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: html: %w", err)
	}

	return nil
}

func inc(i int) int { return i + 1 }
