package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/blekhmanlab/rxivist-sub000/internal/domain"
	"github.com/blekhmanlab/rxivist-sub000/internal/ports"
)

// ArticleRepo persists articles keyed by DOI.
type ArticleRepo struct {
	store *Store
}

var _ ports.ArticleRepository = (*ArticleRepo)(nil)

// FindByDOI returns the stored article for a DOI, or domain.ErrNotFound.
func (r *ArticleRepo) FindByDOI(ctx context.Context, doi string) (domain.Article, error) {
	var (
		art     domain.Article
		abstr   sql.NullString
		coll    sql.NullString
		posted  sql.NullTime
		crawled sql.NullTime
	)

	err := r.store.exec(ctx, func() error {
		return r.store.builder.
			Select("id", "url", "title", "doi", "abstract", "collection", "posted", "last_crawled").
			From("articles").
			Where(sq.Eq{"doi": doi}).
			QueryRowContext(ctx).
			Scan(&art.ID, &art.URL, &art.Title, &art.DOI, &abstr, &coll, &posted, &crawled)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Article{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Article{}, fmt.Errorf("find article %s: %w", doi, err)
	}

	art.Abstract = abstr.String
	art.Collection = coll.String
	art.Posted = posted.Time
	art.LastCrawled = crawled.Time
	return art, nil
}

// Insert stores a first-sighting draft and returns the new surrogate id.
func (r *ArticleRepo) Insert(ctx context.Context, draft domain.Article) (int, error) {
	var id int
	err := r.store.exec(ctx, func() error {
		return r.store.builder.
			Insert("articles").
			Columns("url", "title", "doi", "collection", "last_crawled").
			Values(draft.URL, draft.Title, draft.DOI, draft.Collection, time.Now().UTC()).
			Suffix("RETURNING id").
			QueryRowContext(ctx).
			Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("insert article %s: %w", draft.DOI, err)
	}
	return id, nil
}

// UpdateRevision overwrites the mutable fields of a re-posted article.
func (r *ArticleRepo) UpdateRevision(ctx context.Context, id int, url, title, collection string) error {
	err := r.store.exec(ctx, func() error {
		_, execErr := r.store.builder.
			Update("articles").
			Set("url", url).
			Set("title", title).
			Set("collection", collection).
			Set("last_crawled", time.Now().UTC()).
			Where(sq.Eq{"id": id}).
			ExecContext(ctx)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("update article %d revision: %w", id, err)
	}
	return nil
}

// UpdateDetail fills the fields learned from an article's full page. An
// empty abstract is still written: NULL means the detail page was never
// fetched, empty string means it was fetched and carried none.
func (r *ArticleRepo) UpdateDetail(ctx context.Context, id int, abstract string, posted time.Time) error {
	q := r.store.builder.
		Update("articles").
		Set("abstract", abstract).
		Where(sq.Eq{"id": id})
	if !posted.IsZero() {
		q = q.Set("posted", posted)
	}

	err := r.store.exec(ctx, func() error {
		_, execErr := q.ExecContext(ctx)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("update article %d detail: %w", id, err)
	}
	return nil
}

// TouchCrawled records when an article was last visited.
func (r *ArticleRepo) TouchCrawled(ctx context.Context, id int, when time.Time) error {
	err := r.store.exec(ctx, func() error {
		_, execErr := r.store.builder.
			Update("articles").
			Set("last_crawled", when).
			Where(sq.Eq{"id": id}).
			ExecContext(ctx)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("touch article %d: %w", id, err)
	}
	return nil
}

// StaleCandidates returns articles whose detail page was never fetched or
// not crawled since olderThan, oldest first, capped at limit.
func (r *ArticleRepo) StaleCandidates(ctx context.Context, olderThan time.Time, limit int) ([]domain.Article, error) {
	var articles []domain.Article

	err := r.store.exec(ctx, func() error {
		rows, queryErr := r.store.builder.
			Select("id", "url", "title", "doi", "collection").
			From("articles").
			Where(sq.Or{
				sq.Eq{"abstract": nil},
				sq.Lt{"last_crawled": olderThan},
				sq.Eq{"last_crawled": nil},
			}).
			OrderBy("last_crawled ASC NULLS FIRST", "id ASC").
			Limit(uint64(limit)).
			QueryContext(ctx)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		articles = articles[:0]
		for rows.Next() {
			var (
				art  domain.Article
				coll sql.NullString
			)
			if scanErr := rows.Scan(&art.ID, &art.URL, &art.Title, &art.DOI, &coll); scanErr != nil {
				return scanErr
			}
			art.Collection = coll.String
			articles = append(articles, art)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("stale candidates: %w", err)
	}
	return articles, nil
}
