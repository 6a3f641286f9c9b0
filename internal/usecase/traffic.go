package usecase

import (
	"context"
	"log/slog"

	"github.com/blekhmanlab/rxivist-sub000/internal/domain"
	"github.com/blekhmanlab/rxivist-sub000/internal/ports"
)

// TrafficFetcher pulls an article's monthly usage table and records the
// months not yet stored. Already-recorded months are filtered out before
// insert, so repeated runs are idempotent and a closed month is never
// rewritten by this path.
type TrafficFetcher struct {
	source  ports.Source
	traffic ports.TrafficRepository
	logger  *slog.Logger
}

// NewTrafficFetcher wires the source and the traffic repository.
func NewTrafficFetcher(source ports.Source, traffic ports.TrafficRepository, logger *slog.Logger) *TrafficFetcher {
	return &TrafficFetcher{source: source, traffic: traffic, logger: logger}
}

// Refresh fetches and merges one article's traffic. A transient fetch error
// is retried exactly once; a second failure gives up on the article for
// this run. Either way the overall run continues, so failures are logged
// here rather than returned.
func (t *TrafficFetcher) Refresh(ctx context.Context, articleID int, articleURL string) {
	records, err := t.fetchOnceRetried(ctx, articleURL)
	if err != nil {
		t.logger.Warn("traffic fetch failed, skipping article this run",
			"article", articleID, "url", articleURL, "error", err)
		return
	}

	recorded, err := t.traffic.RecordedMonths(ctx, articleID)
	if err != nil {
		t.logger.Warn("traffic lookup failed", "article", articleID, "error", err)
		return
	}

	inserted := 0
	for _, rec := range records {
		if recorded[[2]int{rec.Month, rec.Year}] {
			continue
		}
		if err := t.traffic.Insert(ctx, articleID, rec); err != nil {
			t.logger.Warn("traffic insert failed",
				"article", articleID, "month", rec.Month, "year", rec.Year, "error", err)
			continue
		}
		inserted++
	}

	if inserted > 0 {
		t.logger.Debug("traffic recorded", "article", articleID, "new_months", inserted)
	}
}

func (t *TrafficFetcher) fetchOnceRetried(ctx context.Context, articleURL string) ([]domain.TrafficRecord, error) {
	records, err := t.source.Metrics(ctx, articleURL)
	if err == nil {
		return records, nil
	}
	t.logger.Debug("traffic fetch retrying", "url", articleURL, "error", err)
	return t.source.Metrics(ctx, articleURL)
}
