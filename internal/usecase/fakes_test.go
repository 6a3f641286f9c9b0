package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blekhmanlab/rxivist-sub000/internal/domain"
	"github.com/blekhmanlab/rxivist-sub000/internal/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeArticles is an in-memory ports.ArticleRepository.
type fakeArticles struct {
	nextID   int
	byDOI    map[string]*domain.Article
	touched  map[int]time.Time
	details  map[int]string
	posted   map[int]time.Time
	stale    []domain.Article
	staleCap int
}

var _ ports.ArticleRepository = (*fakeArticles)(nil)

func newFakeArticles() *fakeArticles {
	return &fakeArticles{
		nextID:  100,
		byDOI:   map[string]*domain.Article{},
		touched: map[int]time.Time{},
		details: map[int]string{},
		posted:  map[int]time.Time{},
	}
}

func (f *fakeArticles) FindByDOI(_ context.Context, doi string) (domain.Article, error) {
	if art, ok := f.byDOI[doi]; ok {
		return *art, nil
	}
	return domain.Article{}, domain.ErrNotFound
}

func (f *fakeArticles) Insert(_ context.Context, draft domain.Article) (int, error) {
	f.nextID++
	stored := draft
	stored.ID = f.nextID
	f.byDOI[draft.DOI] = &stored
	return stored.ID, nil
}

func (f *fakeArticles) UpdateRevision(_ context.Context, id int, url, title, collection string) error {
	for _, art := range f.byDOI {
		if art.ID == id {
			art.URL = url
			art.Title = title
			art.Collection = collection
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeArticles) UpdateDetail(_ context.Context, id int, abstract string, posted time.Time) error {
	f.details[id] = abstract
	if !posted.IsZero() {
		f.posted[id] = posted
	}
	return nil
}

func (f *fakeArticles) TouchCrawled(_ context.Context, id int, when time.Time) error {
	f.touched[id] = when
	return nil
}

func (f *fakeArticles) StaleCandidates(_ context.Context, _ time.Time, limit int) ([]domain.Article, error) {
	f.staleCap = limit
	if len(f.stale) > limit {
		return f.stale[:limit], nil
	}
	return f.stale, nil
}

// fakeAuthors is an in-memory ports.AuthorRepository.
type fakeAuthors struct {
	nextID  int
	authors map[int]*domain.Author
	emails  map[int][]string
	links   [][2]int
}

var _ ports.AuthorRepository = (*fakeAuthors)(nil)

func newFakeAuthors() *fakeAuthors {
	return &fakeAuthors{
		nextID:  200,
		authors: map[int]*domain.Author{},
		emails:  map[int][]string{},
	}
}

func (f *fakeAuthors) FindByORCID(_ context.Context, orcid string) (domain.Author, error) {
	for _, a := range f.authors {
		if a.ORCID == orcid {
			return *a, nil
		}
	}
	return domain.Author{}, domain.ErrNotFound
}

func (f *fakeAuthors) FindByName(_ context.Context, name string) (domain.Author, error) {
	for _, a := range f.authors {
		if a.FullName() == name {
			return *a, nil
		}
	}
	return domain.Author{}, domain.ErrNotFound
}

func (f *fakeAuthors) Insert(_ context.Context, draft domain.Author) (int, error) {
	f.nextID++
	stored := draft
	stored.ID = f.nextID
	f.authors[stored.ID] = &stored
	return stored.ID, nil
}

func (f *fakeAuthors) UpdateInstitution(_ context.Context, id int, institution string) error {
	f.authors[id].Institution = institution
	return nil
}

func (f *fakeAuthors) AttachORCID(_ context.Context, id int, orcid string) error {
	f.authors[id].ORCID = orcid
	return nil
}

func (f *fakeAuthors) RecordEmail(_ context.Context, id int, email string) error {
	for _, e := range f.emails[id] {
		if e == email {
			return nil
		}
	}
	f.emails[id] = append(f.emails[id], email)
	return nil
}

func (f *fakeAuthors) LinkArticle(_ context.Context, articleID, authorID int) error {
	for _, link := range f.links {
		if link == [2]int{articleID, authorID} {
			return nil
		}
	}
	f.links = append(f.links, [2]int{articleID, authorID})
	return nil
}

// fakeTrafficRepo is an in-memory ports.TrafficRepository.
type fakeTrafficRepo struct {
	rows map[int]map[[2]int]domain.TrafficRecord
}

var _ ports.TrafficRepository = (*fakeTrafficRepo)(nil)

func newFakeTrafficRepo() *fakeTrafficRepo {
	return &fakeTrafficRepo{rows: map[int]map[[2]int]domain.TrafficRecord{}}
}

func (f *fakeTrafficRepo) RecordedMonths(_ context.Context, articleID int) (map[[2]int]bool, error) {
	recorded := map[[2]int]bool{}
	for key := range f.rows[articleID] {
		recorded[key] = true
	}
	return recorded, nil
}

func (f *fakeTrafficRepo) Insert(_ context.Context, articleID int, rec domain.TrafficRecord) error {
	key := [2]int{rec.Month, rec.Year}
	if f.rows[articleID] == nil {
		f.rows[articleID] = map[[2]int]domain.TrafficRecord{}
	}
	if _, exists := f.rows[articleID][key]; exists {
		return fmt.Errorf("duplicate traffic row %v for article %d", key, articleID)
	}
	f.rows[articleID][key] = rec
	return nil
}

func (f *fakeTrafficRepo) count(articleID int) int {
	return len(f.rows[articleID])
}

// fakeSource is an in-memory ports.Source.
type fakeSource struct {
	pages        map[string][]domain.Listing
	listingCalls int
	listingFail  int
	listingErr   error

	metrics     map[string][]domain.TrafficRecord
	metricsFail map[string]int
	metricsCall map[string]int

	details    map[string]domain.Detail
	detailFail map[string]int
}

var _ ports.Source = (*fakeSource)(nil)

func newFakeSource() *fakeSource {
	return &fakeSource{
		pages:       map[string][]domain.Listing{},
		metrics:     map[string][]domain.TrafficRecord{},
		metricsFail: map[string]int{},
		metricsCall: map[string]int{},
		details:     map[string]domain.Detail{},
		detailFail:  map[string]int{},
	}
}

var errTransient = errors.New("connection reset")

func (f *fakeSource) Listing(_ context.Context, collection string, page int) (domain.Listing, error) {
	f.listingCalls++
	if f.listingFail > 0 {
		f.listingFail--
		if f.listingErr != nil {
			return domain.Listing{}, f.listingErr
		}
		return domain.Listing{}, errTransient
	}
	pages := f.pages[collection]
	if page >= len(pages) {
		return domain.Listing{}, fmt.Errorf("page %d out of range for %s", page, collection)
	}
	return pages[page], nil
}

func (f *fakeSource) Detail(_ context.Context, articleURL string) (domain.Detail, error) {
	if f.detailFail[articleURL] > 0 {
		f.detailFail[articleURL]--
		return domain.Detail{}, errTransient
	}
	return f.details[articleURL], nil
}

func (f *fakeSource) Metrics(_ context.Context, articleURL string) ([]domain.TrafficRecord, error) {
	f.metricsCall[articleURL]++
	if f.metricsFail[articleURL] > 0 {
		f.metricsFail[articleURL]--
		return nil, errTransient
	}
	return f.metrics[articleURL], nil
}

// fakeRanks is an in-memory ports.RankRepository fed fixed metrics. The
// mutex matters because ranking kinds recompute concurrently.
type fakeRanks struct {
	mu             sync.Mutex
	articleMetrics map[domain.RankKind][]domain.Metric
	authorMetrics  map[domain.RankKind][]domain.Metric
	published      map[domain.RankKind][]domain.RankEntry
}

var _ ports.RankRepository = (*fakeRanks)(nil)

func newFakeRanks() *fakeRanks {
	return &fakeRanks{
		articleMetrics: map[domain.RankKind][]domain.Metric{},
		authorMetrics:  map[domain.RankKind][]domain.Metric{},
		published:      map[domain.RankKind][]domain.RankEntry{},
	}
}

func (f *fakeRanks) ArticleDownloads(_ context.Context, kind domain.RankKind, _ time.Time) ([]domain.Metric, error) {
	return f.articleMetrics[kind], nil
}

func (f *fakeRanks) AuthorDownloads(_ context.Context, kind domain.RankKind) ([]domain.Metric, error) {
	return f.authorMetrics[kind], nil
}

func (f *fakeRanks) ReplaceRanks(_ context.Context, kind domain.RankKind, entries []domain.RankEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[kind] = entries
	return nil
}

func (f *fakeRanks) ranksFor(kind domain.RankKind) []domain.RankEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[kind]
}
