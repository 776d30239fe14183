package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/pdfsearch/internal/config"
	"github.com/FranksOps/pdfsearch/internal/pipeline"
	"github.com/FranksOps/pdfsearch/internal/report"
	"github.com/FranksOps/pdfsearch/internal/verify"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const messageNoneInRange = "No PDFs found with the specified page count range."

var searchCmd = &cobra.Command{
	Use:   "search [keywords...]",
	Short: "Search for PDF documents matching keywords",
	Long: `Search queries DuckDuckGo for "<keywords> filetype:pdf", keeps the links
that answer a HEAD request with Content-Type application/pdf and, when a page
range is given, downloads each one to count its pages.

Without keywords, or with --interactive, the command prompts for the keywords,
the number of results and the page range.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntP("num-results", "n", 0, "number of search results to inspect (default from search.num_results)")
	searchCmd.Flags().Int("min-pages", 0, "minimum page count, 0 for no minimum")
	searchCmd.Flags().Int("max-pages", 0, "maximum page count (no limit unless set)")
	searchCmd.Flags().StringP("output", "o", "", "output format: text, json, table or html")
	searchCmd.Flags().BoolP("interactive", "i", false, "prompt for the search parameters")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	c, err := searchConfig(cmd.Flags(), cfg)
	if err != nil {
		return err
	}

	format, err := report.ParseFormat(c.Output.Format)
	if err != nil {
		return err
	}

	interactive, _ := cmd.Flags().GetBool("interactive")
	var req pipeline.Request
	if interactive || len(args) == 0 {
		req, err = promptRequest(bufio.NewReader(cmd.InOrStdin()), cmd.ErrOrStderr(), c.Search.NumResults)
	} else {
		req, err = flagRequest(cmd.Flags(), args, c.Search.NumResults)
	}
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), c, logger)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.close(ctx)
	}()

	resp, err := a.pipeline.Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	summary := report.FromResponse(req.Query, resp)
	if format == report.FormatText && resp.Stats.Filtered && len(resp.Links) == 0 {
		summary.Message = messageNoneInRange
	}
	return report.Write(cmd.OutOrStdout(), format, summary)
}

// searchConfig merges the flags that were explicitly set over base.
func searchConfig(flags *pflag.FlagSet, base config.Config) (config.Config, error) {
	var override config.Config
	if flags.Changed("num-results") {
		n, _ := flags.GetInt("num-results")
		if n <= 0 {
			return config.Config{}, fmt.Errorf("--num-results must be positive, got %d", n)
		}
		override.Search.NumResults = n
	}
	if flags.Changed("output") {
		override.Output.Format, _ = flags.GetString("output")
	}

	merged, err := config.Merge(base, override)
	if err != nil {
		return config.Config{}, err
	}
	if err := merged.Check(); err != nil {
		return config.Config{}, err
	}
	return merged, nil
}

func flagRequest(flags *pflag.FlagSet, args []string, numResults int) (pipeline.Request, error) {
	minPages, _ := flags.GetInt("min-pages")
	if minPages < 0 {
		return pipeline.Request{}, fmt.Errorf("--min-pages must not be negative, got %d", minPages)
	}

	var maxPages *int
	if flags.Changed("max-pages") {
		n, _ := flags.GetInt("max-pages")
		if n < 0 {
			return pipeline.Request{}, fmt.Errorf("--max-pages must not be negative, got %d", n)
		}
		maxPages = &n
	}

	return pipeline.Request{
		Query:      strings.Join(args, " "),
		NumResults: numResults,
		Bounds:     verify.NewBounds(minPages, maxPages),
	}, nil
}

// promptRequest asks for the keywords, result count and page range. Blank
// answers take the default: defaultNum results, no minimum, no maximum.
func promptRequest(r *bufio.Reader, w io.Writer, defaultNum int) (pipeline.Request, error) {
	query, err := ask(r, w, "Enter keywords: ")
	if err != nil {
		return pipeline.Request{}, err
	}
	if query == "" {
		return pipeline.Request{}, errors.New("keywords are required")
	}

	num, err := askInt(r, w, fmt.Sprintf("How many results would you like to retrieve? [%d]: ", defaultNum), defaultNum)
	if err != nil {
		return pipeline.Request{}, err
	}
	if num <= 0 {
		return pipeline.Request{}, fmt.Errorf("number of results must be positive, got %d", num)
	}

	minPages, err := askInt(r, w, "Enter minimum page count (or 0 to skip): ", 0)
	if err != nil {
		return pipeline.Request{}, err
	}
	if minPages < 0 {
		return pipeline.Request{}, fmt.Errorf("minimum page count must not be negative, got %d", minPages)
	}

	var maxPages *int
	answer, err := ask(r, w, "Enter maximum page count (leave blank for no limit): ")
	if err != nil {
		return pipeline.Request{}, err
	}
	if answer != "" {
		n, err := strconv.Atoi(answer)
		if err != nil {
			return pipeline.Request{}, fmt.Errorf("invalid page count %q", answer)
		}
		if n < 0 {
			return pipeline.Request{}, fmt.Errorf("maximum page count must not be negative, got %d", n)
		}
		maxPages = &n
	}

	return pipeline.Request{
		Query:      query,
		NumResults: num,
		Bounds:     verify.NewBounds(minPages, maxPages),
	}, nil
}

func ask(r *bufio.Reader, w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt)
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func askInt(r *bufio.Reader, w io.Writer, prompt string, def int) (int, error) {
	answer, err := ask(r, w, prompt)
	if err != nil {
		return 0, err
	}
	if answer == "" {
		return def, nil
	}
	n, err := strconv.Atoi(answer)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", answer)
	}
	return n, nil
}
