package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/blekhmanlab/rxivist-sub000/internal/domain"
	"github.com/blekhmanlab/rxivist-sub000/internal/ports"
)

// TrafficRepo persists monthly usage counts. Rows are append-only: a closed
// month's statistics are never overwritten.
type TrafficRepo struct {
	store *Store
}

var _ ports.TrafficRepository = (*TrafficRepo)(nil)

// RecordedMonths returns the set of (month, year) pairs already stored for
// an article, used to filter fetched tables down to new months only.
func (r *TrafficRepo) RecordedMonths(ctx context.Context, articleID int) (map[[2]int]bool, error) {
	recorded := map[[2]int]bool{}

	err := r.store.exec(ctx, func() error {
		rows, queryErr := r.store.builder.
			Select("month", "year").
			From("article_traffic").
			Where(sq.Eq{"article": articleID}).
			QueryContext(ctx)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		for rows.Next() {
			var month, year int
			if scanErr := rows.Scan(&month, &year); scanErr != nil {
				return scanErr
			}
			recorded[[2]int{month, year}] = true
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("recorded months for article %d: %w", articleID, err)
	}
	return recorded, nil
}

// Insert records one month of counts. A duplicate-key race means the month
// is already recorded and is not an error.
func (r *TrafficRepo) Insert(ctx context.Context, articleID int, rec domain.TrafficRecord) error {
	err := r.store.exec(ctx, func() error {
		_, execErr := r.store.builder.
			Insert("article_traffic").
			Columns("article", "month", "year", "abstract", "pdf").
			Values(articleID, rec.Month, rec.Year, rec.Abstract, rec.Downloads).
			ExecContext(ctx)
		return execErr
	})
	if err != nil {
		if isDuplicate(err) {
			r.store.logger.Debug("traffic month already recorded",
				"article", articleID, "month", rec.Month, "year", rec.Year)
			return nil
		}
		return fmt.Errorf("insert traffic %d/%d for article %d: %w", rec.Month, rec.Year, articleID, err)
	}
	return nil
}
