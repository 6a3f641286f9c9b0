package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blekhmanlab/rxivist-sub000/internal/domain"
	"github.com/blekhmanlab/rxivist-sub000/internal/ports"
)

// Crawler walks a collection's paginated listing newest-first, feeding each
// entry through the reconciler. New entries are always prepended on the
// source, so a run of consecutive recognized (known, unrevised) articles
// implies the remainder of the listing is unchanged and the walk stops. The
// run length requirement tolerates entries interleaved into the listing by
// the live source mid-crawl; one recognized article between unrecognized
// ones does not stop the walk.
type Crawler struct {
	source     ports.Source
	reconciler *Reconciler
	logger     *slog.Logger

	stopThreshold int
	pageCap       int
}

// CrawlStats summarizes one collection walk.
type CrawlStats struct {
	Pages     int
	New       int
	Revised   int
	Unchanged int
}

// NewCrawler wires the walker. stopThreshold is the consecutive-recognized
// run required to stop; pageCap caps fetched pages per collection (zero
// means the source's reported last page is the only bound).
func NewCrawler(source ports.Source, reconciler *Reconciler, stopThreshold, pageCap int, logger *slog.Logger) *Crawler {
	if stopThreshold <= 0 {
		stopThreshold = 1
	}
	return &Crawler{
		source:        source,
		reconciler:    reconciler,
		logger:        logger,
		stopThreshold: stopThreshold,
		pageCap:       pageCap,
	}
}

// Crawl walks one named collection from page zero. Structural extraction
// failures abort the run: without a DOI the reconciler cannot establish
// identity, and proceeding would risk an irreconcilable duplicate next run.
// A page fetch that fails its retry only ends this collection's walk;
// progress so far is committed and the next run resumes from page zero.
func (c *Crawler) Crawl(ctx context.Context, collection string) (CrawlStats, error) {
	stats := CrawlStats{}
	consecutive := 0

	for page := 0; ; page++ {
		listing, err := c.fetchListing(ctx, collection, page)
		if err != nil {
			if domain.IsStructural(err) {
				return stats, fmt.Errorf("collection %s page %d: %w", collection, page, err)
			}
			c.logger.Warn("listing fetch failed after retry, ending walk",
				"collection", collection, "page", page, "error", err)
			break
		}
		stats.Pages++

		done, err := c.processPage(ctx, listing.Entries, &stats, &consecutive)
		if err != nil {
			return stats, fmt.Errorf("collection %s page %d: %w", collection, page, err)
		}
		if done {
			c.logger.Debug("stop threshold reached", "collection", collection, "page", page)
			break
		}

		lastPage := listing.LastPage
		if c.pageCap > 0 && c.pageCap-1 < lastPage {
			lastPage = c.pageCap - 1
		}
		if page >= lastPage {
			break
		}
	}

	c.logger.Info("collection crawled", "collection", collection,
		"pages", stats.Pages, "new", stats.New, "revised", stats.Revised, "unchanged", stats.Unchanged)
	return stats, nil
}

func (c *Crawler) processPage(ctx context.Context, entries []domain.Article, stats *CrawlStats, consecutive *int) (bool, error) {
	for _, entry := range entries {
		result, err := c.reconciler.ReconcileArticle(ctx, entry)
		if err != nil {
			return false, err
		}

		switch result {
		case domain.ResultNew:
			stats.New++
			*consecutive = 0
		case domain.ResultRevised:
			stats.Revised++
			*consecutive = 0
		case domain.ResultUnchanged:
			stats.Unchanged++
			*consecutive++
			if *consecutive >= c.stopThreshold {
				return true, nil
			}
		}
	}
	return false, nil
}

// fetchListing retries a transient listing fetch once. Structural
// extraction errors are not transient and fail immediately.
func (c *Crawler) fetchListing(ctx context.Context, collection string, page int) (domain.Listing, error) {
	listing, err := c.source.Listing(ctx, collection, page)
	if err == nil || domain.IsStructural(err) {
		return listing, err
	}
	c.logger.Debug("listing fetch retrying", "collection", collection, "page", page, "error", err)
	return c.source.Listing(ctx, collection, page)
}
