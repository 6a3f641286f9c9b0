package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/blekhmanlab/rxivist-sub000/internal/domain"
	"github.com/blekhmanlab/rxivist-sub000/internal/ports"
)

// RankRepo reads aggregated download totals and publishes recomputed
// leaderboards. Each ranking kind owns an active table and a working table;
// publication repopulates the working table and exchanges the two names in
// one transaction, so readers only ever see a complete table.
type RankRepo struct {
	store *Store
}

var _ ports.RankRepository = (*RankRepo)(nil)

var rankTables = map[domain.RankKind]string{
	domain.RankAllTime:        "alltime_ranks",
	domain.RankYearToDate:     "ytd_ranks",
	domain.RankMonth:          "month_ranks",
	domain.RankCategory:       "category_ranks",
	domain.RankAuthor:         "author_ranks",
	domain.RankAuthorCategory: "author_ranks_category",
}

// ArticleDownloads aggregates pdf download totals per article for a kind.
// Rows come back ordered for rank assignment: category ascending (when the
// kind is category-scoped), downloads descending, entity id ascending as the
// deterministic tie-break.
func (r *RankRepo) ArticleDownloads(ctx context.Context, kind domain.RankKind, now time.Time) ([]domain.Metric, error) {
	q := r.store.builder.
		Select("t.article", "SUM(t.pdf) AS downloads").
		From("article_traffic t").
		GroupBy("t.article").
		OrderBy("downloads DESC", "t.article ASC")

	switch kind {
	case domain.RankYearToDate:
		q = q.Where(sq.Eq{"t.year": now.Year()})
	case domain.RankMonth:
		// Most recent closed month: the latest (year, month) present.
		q = q.Where("t.year * 100 + t.month = (SELECT MAX(year * 100 + month) FROM article_traffic)")
	case domain.RankCategory:
		q = r.store.builder.
			Select("t.article", "SUM(t.pdf) AS downloads", "a.collection").
			From("article_traffic t").
			Join("articles a ON a.id = t.article").
			GroupBy("t.article", "a.collection").
			OrderBy("a.collection ASC", "downloads DESC", "t.article ASC")
	}

	return r.queryMetrics(ctx, q, kind)
}

// AuthorDownloads aggregates pdf download totals per author, summed over all
// articles the author is linked to.
func (r *RankRepo) AuthorDownloads(ctx context.Context, kind domain.RankKind) ([]domain.Metric, error) {
	q := r.store.builder.
		Select("aa.author", "SUM(t.pdf) AS downloads").
		From("article_traffic t").
		Join("article_authors aa ON aa.article = t.article").
		GroupBy("aa.author").
		OrderBy("downloads DESC", "aa.author ASC")

	if kind == domain.RankAuthorCategory {
		q = r.store.builder.
			Select("aa.author", "SUM(t.pdf) AS downloads", "a.collection").
			From("article_traffic t").
			Join("article_authors aa ON aa.article = t.article").
			Join("articles a ON a.id = t.article").
			GroupBy("aa.author", "a.collection").
			OrderBy("a.collection ASC", "downloads DESC", "aa.author ASC")
	}

	return r.queryMetrics(ctx, q, kind)
}

func (r *RankRepo) queryMetrics(ctx context.Context, q sq.SelectBuilder, kind domain.RankKind) ([]domain.Metric, error) {
	var metrics []domain.Metric

	err := r.store.exec(ctx, func() error {
		rows, queryErr := q.QueryContext(ctx)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		metrics = metrics[:0]
		for rows.Next() {
			var (
				m    domain.Metric
				coll sql.NullString
			)
			if kind.ByCategory() {
				if scanErr := rows.Scan(&m.EntityID, &m.Downloads, &coll); scanErr != nil {
					return scanErr
				}
				m.Category = coll.String
			} else if scanErr := rows.Scan(&m.EntityID, &m.Downloads); scanErr != nil {
				return scanErr
			}
			metrics = append(metrics, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate %s downloads: %w", kind, err)
	}
	return metrics, nil
}

// ReplaceRanks truncates the kind's working table, repopulates it, and swaps
// the active/working names. Postgres DDL is transactional, so the three-way
// rename commits as one atomic exchange and no reader observes a missing or
// half-built table.
func (r *RankRepo) ReplaceRanks(ctx context.Context, kind domain.RankKind, entries []domain.RankEntry) error {
	active, ok := rankTables[kind]
	if !ok {
		return fmt.Errorf("unknown ranking kind %q", kind)
	}
	working := active + "_working"

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rank swap: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "TRUNCATE "+working); err != nil {
		return fmt.Errorf("truncate %s: %w", working, err)
	}

	if err := r.populate(ctx, tx, working, kind, entries); err != nil {
		return err
	}

	swap := []string{
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s_swap", active, active),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", working, active),
		fmt.Sprintf("ALTER TABLE %s_swap RENAME TO %s", active, working),
	}
	for _, stmt := range swap {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("rank table swap: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rank swap: %w", err)
	}
	return nil
}

const insertChunk = 500

func (r *RankRepo) populate(ctx context.Context, tx *sql.Tx, table string, kind domain.RankKind, entries []domain.RankEntry) error {
	entity := "article"
	if kind.ByAuthor() {
		entity = "author"
	}

	builder := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(tx)

	for start := 0; start < len(entries); start += insertChunk {
		end := start + insertChunk
		if end > len(entries) {
			end = len(entries)
		}

		var q sq.InsertBuilder
		if kind == domain.RankAuthorCategory {
			q = builder.Insert(table).Columns(entity, "rank", "downloads", "tie", "category")
			for _, e := range entries[start:end] {
				q = q.Values(e.EntityID, e.Rank, e.Downloads, e.Tie, e.Category)
			}
		} else {
			q = builder.Insert(table).Columns(entity, "rank", "downloads", "tie")
			for _, e := range entries[start:end] {
				q = q.Values(e.EntityID, e.Rank, e.Downloads, e.Tie)
			}
		}

		if _, err := q.ExecContext(ctx); err != nil {
			return fmt.Errorf("populate %s: %w", table, err)
		}
	}

	return nil
}
