package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blekhmanlab/rxivist-sub000/internal/domain"
	"github.com/blekhmanlab/rxivist-sub000/internal/ports"
)

// Ranker recomputes the download leaderboards. Rank assignment uses the
// ordinal-with-gap tie policy: tied entities share the first tied position's
// rank and carry a tie flag, and the next distinct value takes its 1-based
// position, so totals [100, 100, 80] rank as [1, 1, 3]. The aggregation
// query breaks value ties by entity id, keeping recomputation deterministic.
type Ranker struct {
	ranks  ports.RankRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewRanker wires the ranking repository.
func NewRanker(ranks ports.RankRepository, logger *slog.Logger) *Ranker {
	return &Ranker{ranks: ranks, logger: logger, now: time.Now}
}

// RecomputeAll rebuilds every ranking kind. Kinds write disjoint table
// pairs and only read traffic data, so they run concurrently.
func (r *Ranker) RecomputeAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, kind := range domain.ArticleRankKinds {
		kind := kind
		g.Go(func() error { return r.Recompute(gctx, kind) })
	}
	for _, kind := range domain.AuthorRankKinds {
		kind := kind
		g.Go(func() error { return r.Recompute(gctx, kind) })
	}

	return g.Wait()
}

// Recompute rebuilds one leaderboard: aggregate, assign ranks, repopulate
// the working table, and swap it with the active table atomically.
func (r *Ranker) Recompute(ctx context.Context, kind domain.RankKind) error {
	var (
		metrics []domain.Metric
		err     error
	)
	if kind.ByAuthor() {
		metrics, err = r.ranks.AuthorDownloads(ctx, kind)
	} else {
		metrics, err = r.ranks.ArticleDownloads(ctx, kind, r.now())
	}
	if err != nil {
		return fmt.Errorf("recompute %s: %w", kind, err)
	}

	entries := rankMetrics(kind, metrics)
	if err := r.ranks.ReplaceRanks(ctx, kind, entries); err != nil {
		return fmt.Errorf("recompute %s: %w", kind, err)
	}

	r.logger.Info("ranking recomputed", "kind", kind, "entries", len(entries))
	return nil
}

// rankMetrics assigns ranks over the ordered aggregation. Category-scoped
// kinds restart rank numbering within each category; the query returns rows
// grouped by category, so contiguous runs are ranked independently.
func rankMetrics(kind domain.RankKind, metrics []domain.Metric) []domain.RankEntry {
	if !kind.ByCategory() {
		return domain.AssignRanks(metrics)
	}

	var entries []domain.RankEntry
	start := 0
	for i := 1; i <= len(metrics); i++ {
		if i == len(metrics) || metrics[i].Category != metrics[start].Category {
			entries = append(entries, domain.AssignRanks(metrics[start:i])...)
			start = i
		}
	}
	return entries
}
