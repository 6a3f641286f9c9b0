package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/blekhmanlab/rxivist-sub000/internal/domain"
	"github.com/blekhmanlab/rxivist-sub000/internal/ports"
)

// Refresher selects articles whose detail data is missing or whose traffic
// is stale, oldest first, and re-fetches their detail page and monthly
// usage. A per-run cap bounds the cost of any single invocation; candidates
// beyond the cap wait for a later run.
type Refresher struct {
	articles   ports.ArticleRepository
	source     ports.Source
	reconciler *Reconciler
	traffic    *TrafficFetcher
	logger     *slog.Logger

	window  time.Duration
	runCap  int
	workers int
	now     func() time.Time
}

// NewRefresher wires the refresh cycle. workers bounds concurrent
// per-article fetches; the source's shared limiter keeps aggregate pacing
// polite regardless of pool size.
func NewRefresher(articles ports.ArticleRepository, source ports.Source, reconciler *Reconciler,
	traffic *TrafficFetcher, window time.Duration, runCap, workers int, logger *slog.Logger) *Refresher {
	if runCap <= 0 {
		runCap = 100
	}
	if workers <= 0 {
		workers = 1
	}
	return &Refresher{
		articles:   articles,
		source:     source,
		reconciler: reconciler,
		traffic:    traffic,
		logger:     logger,
		window:     window,
		runCap:     runCap,
		workers:    workers,
		now:        time.Now,
	}
}

// Run refreshes one batch of stale articles. Per-article failures are
// logged and skipped; only candidate selection itself can fail the cycle.
func (r *Refresher) Run(ctx context.Context) error {
	cutoff := r.now().Add(-r.window)
	candidates, err := r.articles.StaleCandidates(ctx, cutoff, r.runCap)
	if err != nil {
		return err
	}

	r.logger.Info("refresh cycle", "candidates", len(candidates), "cutoff", cutoff.Format("2006-01-02"))
	if len(candidates) == 0 {
		return nil
	}

	sem := semaphore.NewWeighted(int64(r.workers))
	var wg sync.WaitGroup

	for _, candidate := range candidates {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(article domain.Article) {
			defer wg.Done()
			defer sem.Release(1)
			r.refreshOne(ctx, article)
		}(candidate)
	}

	wg.Wait()
	return ctx.Err()
}

func (r *Refresher) refreshOne(ctx context.Context, article domain.Article) {
	detail, err := r.fetchDetailRetried(ctx, article.URL)
	if err != nil {
		r.logger.Warn("detail fetch failed, skipping article this run",
			"article", article.ID, "url", article.URL, "error", err)
		return
	}

	// Record the detail even when the page carries no abstract: the posted
	// date still matters, and writing the empty abstract marks the article
	// as fetched so it stops monopolizing candidate slots every cycle.
	if err := r.articles.UpdateDetail(ctx, article.ID, detail.Abstract, detail.Posted); err != nil {
		r.logger.Warn("detail update failed", "article", article.ID, "error", err)
	}

	// Detail pages carry institutions, emails and ORCIDs absent from
	// listing fragments; fold them into the author records.
	r.reconciler.recordAuthors(ctx, article.ID, detail.Authors)

	r.traffic.Refresh(ctx, article.ID, article.URL)

	if err := r.articles.TouchCrawled(ctx, article.ID, r.now()); err != nil {
		r.logger.Warn("crawl timestamp update failed", "article", article.ID, "error", err)
	}
}

func (r *Refresher) fetchDetailRetried(ctx context.Context, articleURL string) (domain.Detail, error) {
	detail, err := r.source.Detail(ctx, articleURL)
	if err == nil {
		return detail, nil
	}
	r.logger.Debug("detail fetch retrying", "url", articleURL, "error", err)
	return r.source.Detail(ctx, articleURL)
}
