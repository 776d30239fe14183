package verify

import (
	"context"
	"log/slog"
	"time"

	"github.com/FranksOps/pdfsearch/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// outcome is the terminal state of one link within a stage.
type outcome string

const (
	outcomeKept        outcome = "kept"
	outcomeError       outcome = "error"
	outcomeStatus      outcome = "status"
	outcomeContentType outcome = "content_type"
	outcomeParse       outcome = "parse"
	outcomeOutOfRange  outcome = "out_of_range"
	outcomePanic       outcome = "panic"
)

type checkFunc func(ctx context.Context, link string) (outcome, error)

// checkAll runs check for every link at once (or limit at a time when
// limit > 0) and returns the kept links once every task has finished.
// Tasks never fail the group.
func checkAll(ctx context.Context, stage string, links []string, limit int, logger *slog.Logger, check checkFunc) []string {
	kept := make([]bool, len(links))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, link := range links {
		g.Go(func() error {
			start := time.Now()
			res, err := runCheck(ctx, link, check)
			metrics.RecordCheck(stage, string(res), time.Since(start))

			if res == outcomeKept {
				kept[i] = true
				logger.Debug("link kept", "stage", stage, "url", link)
				return nil
			}
			logger.Debug("link dropped", "stage", stage, "url", link, "outcome", res, "err", err)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]string, 0, len(links))
	for i, link := range links {
		if kept[i] {
			out = append(out, link)
		}
	}
	return out
}

func runCheck(ctx context.Context, link string, check checkFunc) (res outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = outcomePanic, nil
		}
	}()
	return check(ctx, link)
}
