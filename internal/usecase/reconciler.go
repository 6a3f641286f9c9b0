package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/blekhmanlab/rxivist-sub000/internal/domain"
	"github.com/blekhmanlab/rxivist-sub000/internal/ports"
)

// Reconciler decides whether a draft entity is new, a known duplicate, or a
// revision of a known record, and applies the matching store mutation.
// Article identity is the DOI; a changed URL under a known DOI is a revision
// and overwrites url/title/collection in place.
type Reconciler struct {
	articles ports.ArticleRepository
	authors  ports.AuthorRepository
	traffic  *TrafficFetcher
	logger   *slog.Logger
}

// NewReconciler wires the repositories the reconciler mutates.
func NewReconciler(articles ports.ArticleRepository, authors ports.AuthorRepository, traffic *TrafficFetcher, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		articles: articles,
		authors:  authors,
		traffic:  traffic,
		logger:   logger,
	}
}

// ReconcileArticle folds a draft into the store and reports what happened.
// New and revised sightings also pull the article's authors and traffic;
// traffic merging is idempotent so a revision unions months rather than
// duplicating them.
func (r *Reconciler) ReconcileArticle(ctx context.Context, draft domain.Article) (domain.ReconcileResult, error) {
	existing, err := r.articles.FindByDOI(ctx, draft.DOI)
	if errors.Is(err, domain.ErrNotFound) {
		id, insErr := r.articles.Insert(ctx, draft)
		if insErr != nil {
			return domain.ResultNew, insErr
		}
		r.logger.Info("new article", "doi", draft.DOI, "title", draft.Title)
		r.recordAuthors(ctx, id, draft.Authors)
		r.traffic.Refresh(ctx, id, draft.URL)
		return domain.ResultNew, nil
	}
	if err != nil {
		return domain.ResultUnchanged, err
	}

	if existing.URL == draft.URL {
		return domain.ResultUnchanged, nil
	}

	if updErr := r.articles.UpdateRevision(ctx, existing.ID, draft.URL, draft.Title, draft.Collection); updErr != nil {
		return domain.ResultRevised, updErr
	}
	r.logger.Info("article revised", "doi", draft.DOI, "old_url", existing.URL, "new_url", draft.URL)
	r.recordAuthors(ctx, existing.ID, draft.Authors)
	r.traffic.Refresh(ctx, existing.ID, draft.URL)
	return domain.ResultRevised, nil
}

// ReconcileAuthor resolves a draft author to a stored id: ORCID lookup
// first, exact full-name match second, insert last. The most recently seen
// institution wins, a name match may gain a newly discovered ORCID, and
// emails accumulate into a duplicate-suppressed set.
func (r *Reconciler) ReconcileAuthor(ctx context.Context, draft domain.Author) (int, error) {
	found, err := r.lookupAuthor(ctx, draft)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return 0, err
	}

	var id int
	switch {
	case err == nil:
		id = found.ID
		if draft.Institution != "" && draft.Institution != found.Institution {
			if updErr := r.authors.UpdateInstitution(ctx, id, draft.Institution); updErr != nil {
				return 0, updErr
			}
		}
		if draft.ORCID != "" && found.ORCID == "" {
			if updErr := r.authors.AttachORCID(ctx, id, draft.ORCID); updErr != nil {
				return 0, updErr
			}
		}
	default:
		id, err = r.authors.Insert(ctx, draft)
		if err != nil {
			return 0, err
		}
		r.logger.Debug("new author", "name", draft.FullName(), "orcid", draft.ORCID)
	}

	if draft.Email != "" {
		if emailErr := r.authors.RecordEmail(ctx, id, draft.Email); emailErr != nil {
			return 0, emailErr
		}
	}

	return id, nil
}

func (r *Reconciler) lookupAuthor(ctx context.Context, draft domain.Author) (domain.Author, error) {
	if draft.ORCID != "" {
		found, err := r.authors.FindByORCID(ctx, draft.ORCID)
		if err == nil || !errors.Is(err, domain.ErrNotFound) {
			return found, err
		}
	}
	return r.authors.FindByName(ctx, draft.FullName())
}

// recordAuthors reconciles and links each draft author in source order.
// Failures here are logged and skipped: a bad author record should not lose
// the article sighting already committed.
func (r *Reconciler) recordAuthors(ctx context.Context, articleID int, drafts []domain.Author) {
	for _, draft := range drafts {
		if draft.Given == "" && draft.Surname == "" {
			continue
		}
		authorID, err := r.ReconcileAuthor(ctx, draft)
		if err != nil {
			r.logger.Warn("author reconciliation failed",
				"article", articleID, "name", draft.FullName(), "error", err)
			continue
		}
		if err := r.authors.LinkArticle(ctx, articleID, authorID); err != nil {
			r.logger.Warn("authorship link failed",
				"article", articleID, "author", authorID, "error", err)
		}
	}
}
