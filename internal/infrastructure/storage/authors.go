package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/blekhmanlab/rxivist-sub000/internal/domain"
	"github.com/blekhmanlab/rxivist-sub000/internal/ports"
)

// AuthorRepo persists authors, their email sets, and article links.
type AuthorRepo struct {
	store *Store
}

var _ ports.AuthorRepository = (*AuthorRepo)(nil)

// FindByORCID returns the author holding an ORCID, or domain.ErrNotFound.
func (r *AuthorRepo) FindByORCID(ctx context.Context, orcid string) (domain.Author, error) {
	return r.findOne(ctx, sq.Eq{"orcid": orcid})
}

// FindByName returns the author with an exact full-name match, or
// domain.ErrNotFound. Matching on the joined name tolerates listing and
// detail pages splitting a multi-word surname at different points.
func (r *AuthorRepo) FindByName(ctx context.Context, name string) (domain.Author, error) {
	return r.findOne(ctx, sq.Expr("trim(given || ' ' || surname) = ?", name))
}

func (r *AuthorRepo) findOne(ctx context.Context, where sq.Sqlizer) (domain.Author, error) {
	var (
		author domain.Author
		inst   sql.NullString
		orcid  sql.NullString
	)

	err := r.store.exec(ctx, func() error {
		return r.store.builder.
			Select("id", "given", "surname", "institution", "orcid").
			From("authors").
			Where(where).
			OrderBy("id ASC").
			Limit(1).
			QueryRowContext(ctx).
			Scan(&author.ID, &author.Given, &author.Surname, &inst, &orcid)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Author{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Author{}, fmt.Errorf("find author: %w", err)
	}

	author.Institution = inst.String
	author.ORCID = orcid.String
	return author, nil
}

// Insert stores a new author and returns the surrogate id.
func (r *AuthorRepo) Insert(ctx context.Context, draft domain.Author) (int, error) {
	var orcid any
	if draft.ORCID != "" {
		orcid = draft.ORCID
	}

	var id int
	err := r.store.exec(ctx, func() error {
		return r.store.builder.
			Insert("authors").
			Columns("given", "surname", "institution", "orcid").
			Values(draft.Given, draft.Surname, draft.Institution, orcid).
			Suffix("RETURNING id").
			QueryRowContext(ctx).
			Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("insert author %s: %w", draft.FullName(), err)
	}
	return id, nil
}

// UpdateInstitution overwrites an author's institution; the most recently
// seen affiliation wins.
func (r *AuthorRepo) UpdateInstitution(ctx context.Context, id int, institution string) error {
	err := r.store.exec(ctx, func() error {
		_, execErr := r.store.builder.
			Update("authors").
			Set("institution", institution).
			Where(sq.Eq{"id": id}).
			ExecContext(ctx)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("update author %d institution: %w", id, err)
	}
	return nil
}

// AttachORCID records a newly discovered ORCID on a name-matched author.
func (r *AuthorRepo) AttachORCID(ctx context.Context, id int, orcid string) error {
	err := r.store.exec(ctx, func() error {
		_, execErr := r.store.builder.
			Update("authors").
			Set("orcid", orcid).
			Where(sq.Eq{"id": id}).
			ExecContext(ctx)
		return execErr
	})
	if err != nil {
		if isDuplicate(err) {
			// Another row already holds this ORCID; keep the name match.
			r.store.logger.Debug("orcid already attached elsewhere", "author", id, "orcid", orcid)
			return nil
		}
		return fmt.Errorf("attach orcid to author %d: %w", id, err)
	}
	return nil
}

// RecordEmail appends an address to the author's email set; duplicates are
// suppressed.
func (r *AuthorRepo) RecordEmail(ctx context.Context, id int, email string) error {
	err := r.store.exec(ctx, func() error {
		_, execErr := r.store.builder.
			Insert("author_emails").
			Columns("author", "email").
			Values(id, email).
			ExecContext(ctx)
		return execErr
	})
	if err != nil {
		if isDuplicate(err) {
			r.store.logger.Debug("email already recorded", "author", id)
			return nil
		}
		return fmt.Errorf("record email for author %d: %w", id, err)
	}
	return nil
}

// LinkArticle records authorship. Insertion order preserves the source
// page's author order; racing duplicates are already-recorded.
func (r *AuthorRepo) LinkArticle(ctx context.Context, articleID, authorID int) error {
	err := r.store.exec(ctx, func() error {
		_, execErr := r.store.builder.
			Insert("article_authors").
			Columns("article", "author").
			Values(articleID, authorID).
			ExecContext(ctx)
		return execErr
	})
	if err != nil {
		if isDuplicate(err) {
			r.store.logger.Debug("authorship already linked", "article", articleID, "author", authorID)
			return nil
		}
		return fmt.Errorf("link author %d to article %d: %w", authorID, articleID, err)
	}
	return nil
}
