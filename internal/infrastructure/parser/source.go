package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/blekhmanlab/rxivist-sub000/internal/config"
	"github.com/blekhmanlab/rxivist-sub000/internal/domain"
	"github.com/blekhmanlab/rxivist-sub000/internal/ports"
)

const defaultTimeout = 30 * time.Second

// HTTPSource fetches listing, detail and metrics pages from the preprint
// repository and extracts them into domain values. A shared limiter enforces
// politeness pacing across every request the process makes, regardless of
// which component asked.
type HTTPSource struct {
	client    *http.Client
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
}

var _ ports.Source = (*HTTPSource)(nil)

// NewHTTPSource wires an HTTP client honoring the configured pacing.
func NewHTTPSource(cfg config.SourceConfig, client *http.Client) *HTTPSource {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.IsPolite() && cfg.Pace > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Pace), 1)
	}

	return &HTTPSource{
		client:    client,
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		limiter:   limiter,
	}
}

// Listing fetches page N of a collection's listing, zero-based, and extracts
// its article entries in page order.
func (s *HTTPSource) Listing(ctx context.Context, collection string, page int) (domain.Listing, error) {
	pageURL := fmt.Sprintf("%s/collection/%s", s.baseURL, url.PathEscape(collection))
	if page > 0 {
		pageURL += "?page=" + strconv.Itoa(page)
	}

	doc, err := s.fetchDocument(ctx, pageURL)
	if err != nil {
		return domain.Listing{}, err
	}

	listing := domain.Listing{LastPage: LastPage(doc)}
	for _, sel := range Entries(doc) {
		entry, parseErr := ParseEntry(sel, collection)
		if parseErr != nil {
			return domain.Listing{}, parseErr
		}
		listing.Entries = append(listing.Entries, entry)
	}

	return listing, nil
}

// Detail fetches an article's full page and extracts abstract, posted date,
// and the enriched author list.
func (s *HTTPSource) Detail(ctx context.Context, articleURL string) (domain.Detail, error) {
	doc, err := s.fetchDocument(ctx, s.absolute(articleURL))
	if err != nil {
		return domain.Detail{}, err
	}
	return ParseDetail(doc), nil
}

// Metrics fetches the usage-statistics variant of an article page and
// extracts its monthly table.
func (s *HTTPSource) Metrics(ctx context.Context, articleURL string) ([]domain.TrafficRecord, error) {
	doc, err := s.fetchDocument(ctx, s.absolute(articleURL)+".article-metrics")
	if err != nil {
		return nil, err
	}
	return ParseMetrics(doc), nil
}

func (s *HTTPSource) absolute(articleURL string) string {
	if u, err := url.Parse(articleURL); err == nil && u.IsAbs() {
		return articleURL
	}
	return s.baseURL + articleURL
}

func (s *HTTPSource) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source returned %s for %s", resp.Status, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}
