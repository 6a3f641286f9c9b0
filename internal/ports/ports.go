package ports

import (
	"context"
	"time"

	"github.com/blekhmanlab/rxivist-sub000/internal/domain"
)

// Source fetches and extracts pages from the preprint repository, applying
// politeness pacing between requests. Extraction failures on required
// listing fields surface as domain.StructuralError.
type Source interface {
	Listing(ctx context.Context, collection string, page int) (domain.Listing, error)
	Detail(ctx context.Context, articleURL string) (domain.Detail, error)
	Metrics(ctx context.Context, articleURL string) ([]domain.TrafficRecord, error)
}

// ArticleRepository persists articles keyed by DOI.
type ArticleRepository interface {
	FindByDOI(ctx context.Context, doi string) (domain.Article, error)
	Insert(ctx context.Context, draft domain.Article) (int, error)
	UpdateRevision(ctx context.Context, id int, url, title, collection string) error
	UpdateDetail(ctx context.Context, id int, abstract string, posted time.Time) error
	TouchCrawled(ctx context.Context, id int, when time.Time) error
	StaleCandidates(ctx context.Context, olderThan time.Time, limit int) ([]domain.Article, error)
}

// AuthorRepository persists authors and their article links. Name matching
// uses the joined full name: listing and detail pages split the same person's
// name at different points, so the (given, surname) pair is not stable.
type AuthorRepository interface {
	FindByORCID(ctx context.Context, orcid string) (domain.Author, error)
	FindByName(ctx context.Context, name string) (domain.Author, error)
	Insert(ctx context.Context, draft domain.Author) (int, error)
	UpdateInstitution(ctx context.Context, id int, institution string) error
	AttachORCID(ctx context.Context, id int, orcid string) error
	RecordEmail(ctx context.Context, id int, email string) error
	LinkArticle(ctx context.Context, articleID, authorID int) error
}

// TrafficRepository persists per-article monthly usage counts, append-only.
type TrafficRepository interface {
	RecordedMonths(ctx context.Context, articleID int) (map[[2]int]bool, error)
	Insert(ctx context.Context, articleID int, rec domain.TrafficRecord) error
}

// RankRepository reads aggregated download metrics and publishes recomputed
// leaderboards with an atomic active/working swap.
type RankRepository interface {
	ArticleDownloads(ctx context.Context, kind domain.RankKind, now time.Time) ([]domain.Metric, error)
	AuthorDownloads(ctx context.Context, kind domain.RankKind) ([]domain.Metric, error)
	ReplaceRanks(ctx context.Context, kind domain.RankKind, entries []domain.RankEntry) error
}

// Scheduler drives recurring pipeline runs in daemon mode.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
