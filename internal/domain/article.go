package domain

import "time"

// Article is the core entity tracked across crawls. Identity is the DOI:
// a paper re-posted under a new title or URL keeps its DOI, so url and
// title are mutable while doi is not.
type Article struct {
	ID          int
	URL         string
	Title       string
	Abstract    string
	DOI         string
	Collection  string
	Posted      time.Time
	LastCrawled time.Time
	Authors     []Author
}

// ReconcileResult reports what the reconciler did with a draft article.
type ReconcileResult int

const (
	// ResultNew means the article was inserted for the first time.
	ResultNew ReconcileResult = iota
	// ResultUnchanged means the stored row already matched the draft.
	ResultUnchanged
	// ResultRevised means the article was re-posted under a new URL and the
	// stored row was updated in place.
	ResultRevised
)

func (r ReconcileResult) String() string {
	switch r {
	case ResultNew:
		return "new"
	case ResultUnchanged:
		return "unchanged"
	case ResultRevised:
		return "revised"
	default:
		return "unknown"
	}
}

// TrafficRecord is one month of usage counts for an article. Rows for a
// closed month are immutable once recorded.
type TrafficRecord struct {
	Month     int
	Year      int
	Abstract  int
	Downloads int
}

// Listing is one extracted page of a collection's article listing, entries
// in page order (newest first, by source convention).
type Listing struct {
	Entries []Article
	// LastPage is the source's reported final page number, zero when the
	// listing fits a single page.
	LastPage int
}

// Detail carries the fields only available on an article's full page,
// filled in by refresh crawls after the listing-page sighting.
type Detail struct {
	Abstract string
	Posted   time.Time
	Authors  []Author
}
