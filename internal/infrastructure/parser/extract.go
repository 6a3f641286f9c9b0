package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/blekhmanlab/rxivist-sub000/internal/domain"
)

var (
	doiExpr   = regexp.MustCompile(`10\.\d{4,9}/\S+`)
	countExpr = regexp.MustCompile(`\d+`)
)

// Entries returns the article-citation fragments of a listing page in page
// order (newest first, by source convention).
func Entries(doc *goquery.Document) []*goquery.Selection {
	var entries []*goquery.Selection
	doc.Find("div.highwire-article-citation").Each(func(_ int, sel *goquery.Selection) {
		entries = append(entries, sel)
	})
	return entries
}

// LastPage reads the listing's last-page indicator. Listings short enough to
// fit one page carry no pager; that reports page zero.
func LastPage(doc *goquery.Document) int {
	href, ok := doc.Find("li.pager-last a").First().Attr("href")
	if !ok {
		return 0
	}
	idx := strings.LastIndex(href, "page=")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(href[idx+len("page="):])
	if err != nil {
		return 0
	}
	return n
}

// ParseEntry turns one citation fragment into a draft article. Title, URL
// and DOI are required; a missing one is a structural failure because the
// reconciler cannot establish identity without them.
func ParseEntry(sel *goquery.Selection, collection string) (domain.Article, error) {
	title := strings.TrimSpace(sel.Find("span.highwire-cite-title").First().Text())
	if title == "" {
		return domain.Article{}, &domain.StructuralError{Field: "title"}
	}

	href, ok := sel.Find("a.highwire-cite-linked-title").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return domain.Article{}, &domain.StructuralError{Field: "url"}
	}
	href = strings.TrimSpace(href)

	doiText := sel.Find("span.highwire-cite-metadata-doi").First().Text()
	doi := doiExpr.FindString(doiText)
	if doi == "" {
		return domain.Article{}, &domain.StructuralError{Field: "doi", URL: href}
	}

	article := domain.Article{
		URL:        href,
		Title:      title,
		DOI:        doi,
		Collection: collection,
	}

	sel.Find("span.highwire-citation-author").Each(func(_ int, node *goquery.Selection) {
		article.Authors = append(article.Authors, parseAuthor(node))
	})

	return article, nil
}

func parseAuthor(node *goquery.Selection) domain.Author {
	author := domain.Author{
		Given:   strings.TrimSpace(node.Find("span.nlm-given-names").First().Text()),
		Surname: strings.TrimSpace(node.Find("span.nlm-surname").First().Text()),
	}

	// Collaborative groups appear as a single collab element; they become
	// an author with an empty surname.
	if author.Given == "" && author.Surname == "" {
		author.Given = strings.TrimSpace(node.Find("span.nlm-collab").First().Text())
	}

	if orcid, ok := node.Attr("data-orcid"); ok {
		author.ORCID = strings.TrimSpace(orcid)
	}

	return author
}

// ParseDetail extracts the fields only present on an article's full page:
// abstract, posted date, and the author list enriched with institutions,
// emails, and ORCIDs from the citation meta tags.
func ParseDetail(doc *goquery.Document) domain.Detail {
	detail := domain.Detail{}

	if content, ok := doc.Find(`meta[name="citation_abstract"]`).First().Attr("content"); ok {
		detail.Abstract = strings.TrimSpace(content)
	}
	if detail.Abstract == "" {
		detail.Abstract = strings.TrimSpace(doc.Find("div#abstract-1").First().Text())
	}

	if content, ok := doc.Find(`meta[name="citation_publication_date"]`).First().Attr("content"); ok {
		detail.Posted = parseDate(content)
	}

	detail.Authors = parseMetaAuthors(doc)
	return detail
}

// parseMetaAuthors walks the flat citation meta-tag sequence: each
// citation_author opens an author, and the institution/email/orcid tags that
// follow belong to it until the next citation_author.
func parseMetaAuthors(doc *goquery.Document) []domain.Author {
	var authors []domain.Author

	doc.Find("meta").Each(func(_ int, node *goquery.Selection) {
		name, _ := node.Attr("name")
		content, _ := node.Attr("content")
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}

		switch name {
		case "citation_author":
			authors = append(authors, splitName(content))
		case "citation_author_institution":
			if len(authors) > 0 {
				authors[len(authors)-1].Institution = strings.TrimRight(content, "; ")
			}
		case "citation_author_email":
			if len(authors) > 0 {
				authors[len(authors)-1].Email = content
			}
		case "citation_author_orcid":
			if len(authors) > 0 {
				authors[len(authors)-1].ORCID = strings.TrimPrefix(content, "http://orcid.org/")
			}
		}
	})

	return authors
}

func splitName(full string) domain.Author {
	full = strings.TrimSpace(full)
	idx := strings.LastIndex(full, " ")
	if idx < 0 {
		// Single-token name: a collaborative group or mononym.
		return domain.Author{Given: full}
	}
	return domain.Author{Given: full[:idx], Surname: full[idx+1:]}
}

func parseDate(value string) time.Time {
	for _, layout := range []string{"2006/01/02", "2006-01-02", "2006/1/2"} {
		if t, err := time.Parse(layout, strings.TrimSpace(value)); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ParseMetrics reads the monthly usage table of a metrics page. Rows it
// cannot interpret are skipped rather than failing the article: the table
// is informational and partial data is still worth recording.
func ParseMetrics(doc *goquery.Document) []domain.TrafficRecord {
	var records []domain.TrafficRecord

	doc.Find("div.highwire-stats table tbody tr, table.highwire-stats tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		month, year, ok := parseMonthYear(cells.Eq(0).Text())
		if !ok {
			return
		}

		records = append(records, domain.TrafficRecord{
			Month:     month,
			Year:      year,
			Abstract:  parseCount(cells.Eq(1).Text()),
			Downloads: parseCount(cells.Eq(cells.Length() - 1).Text()),
		})
	})

	return records
}

func parseMonthYear(text string) (month, year int, ok bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) != 2 {
		return 0, 0, false
	}

	for _, layout := range []string{"Jan", "January"} {
		if t, err := time.Parse(layout, fields[0]); err == nil {
			month = int(t.Month())
			break
		}
	}
	if month == 0 {
		return 0, 0, false
	}

	year, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, false
	}

	return month, year, true
}

func parseCount(text string) int {
	digits := countExpr.FindString(strings.ReplaceAll(text, ",", ""))
	n, _ := strconv.Atoi(digits)
	return n
}
