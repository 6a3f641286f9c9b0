package domain

// RankKind names one leaderboard family. Each kind owns an active/working
// table pair that is swapped atomically after recomputation.
type RankKind string

const (
	RankAllTime        RankKind = "alltime"
	RankYearToDate     RankKind = "ytd"
	RankMonth          RankKind = "month"
	RankCategory       RankKind = "category"
	RankAuthor         RankKind = "author"
	RankAuthorCategory RankKind = "author_category"
)

// ByAuthor reports whether the kind ranks authors rather than articles.
func (k RankKind) ByAuthor() bool {
	return k == RankAuthor || k == RankAuthorCategory
}

// ByCategory reports whether ranks are scoped per collection.
func (k RankKind) ByCategory() bool {
	return k == RankCategory || k == RankAuthorCategory
}

// ArticleRankKinds lists the kinds keyed by article id.
var ArticleRankKinds = []RankKind{RankAllTime, RankYearToDate, RankMonth, RankCategory}

// AuthorRankKinds lists the kinds keyed by author id.
var AuthorRankKinds = []RankKind{RankAuthor, RankAuthorCategory}

// Metric is one aggregated download total for an entity, the input to rank
// assignment.
type Metric struct {
	EntityID  int
	Downloads int
	Category  string
}

// RankEntry is one row of a recomputed leaderboard. Rank is 1-based,
// ascending meaning more popular. Tied entities share the rank of the first
// tied position and carry Tie; the next distinct value resumes at its
// ordinal position (100, 100, 80 ranks as 1, 1, 3).
type RankEntry struct {
	EntityID  int
	Rank      int
	Downloads int
	Tie       bool
	Category  string
}

// AssignRanks orders metrics by downloads descending (entity id ascending on
// equal values, keeping recomputation deterministic) is assumed done by the
// caller; it walks the ordered slice and applies the ordinal-with-gap tie
// policy.
func AssignRanks(ordered []Metric) []RankEntry {
	entries := make([]RankEntry, 0, len(ordered))
	for i, m := range ordered {
		e := RankEntry{
			EntityID:  m.EntityID,
			Rank:      i + 1,
			Downloads: m.Downloads,
			Category:  m.Category,
		}
		if i > 0 && ordered[i-1].Downloads == m.Downloads {
			e.Rank = entries[i-1].Rank
			e.Tie = true
			entries[i-1].Tie = true
		}
		entries = append(entries, e)
	}
	return entries
}
