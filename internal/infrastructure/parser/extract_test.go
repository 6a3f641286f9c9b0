package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/blekhmanlab/rxivist-sub000/internal/domain"
)

const listingFixture = `
<div class="highwire-article-citation">
  <span class="highwire-cite-title">
    <a class="highwire-cite-linked-title" href="/content/10.1101/2024.01.01.573001v1">
      <span class="highwire-cite-title">Genome assembly at scale</span>
    </a>
  </span>
  <div class="highwire-cite-authors">
    <span class="highwire-citation-author" data-orcid="0000-0002-1825-0097">
      <span class="nlm-given-names">Jane</span> <span class="nlm-surname">Doe</span>
    </span>
    <span class="highwire-citation-author">
      <span class="nlm-collab">The Genome Consortium</span>
    </span>
  </div>
  <div class="highwire-cite-metadata">
    <span class="highwire-cite-metadata-doi">doi: https://doi.org/10.1101/2024.01.01.573001</span>
  </div>
</div>`

func document(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	return doc
}

func TestParseEntry(t *testing.T) {
	t.Parallel()

	doc := document(t, listingFixture)
	entries := Entries(doc)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	article, err := ParseEntry(entries[0], "bioinformatics")
	if err != nil {
		t.Fatalf("ParseEntry error: %v", err)
	}

	if article.Title != "Genome assembly at scale" {
		t.Fatalf("unexpected title: %q", article.Title)
	}
	if article.URL != "/content/10.1101/2024.01.01.573001v1" {
		t.Fatalf("unexpected url: %q", article.URL)
	}
	if article.DOI != "10.1101/2024.01.01.573001" {
		t.Fatalf("unexpected doi: %q", article.DOI)
	}
	if article.Collection != "bioinformatics" {
		t.Fatalf("unexpected collection: %q", article.Collection)
	}

	if len(article.Authors) != 2 {
		t.Fatalf("expected 2 authors, got %d", len(article.Authors))
	}
	if article.Authors[0].Given != "Jane" || article.Authors[0].Surname != "Doe" {
		t.Fatalf("unexpected first author: %+v", article.Authors[0])
	}
	if article.Authors[0].ORCID != "0000-0002-1825-0097" {
		t.Fatalf("unexpected orcid: %q", article.Authors[0].ORCID)
	}
	if article.Authors[1].Given != "The Genome Consortium" || article.Authors[1].Surname != "" {
		t.Fatalf("collaborative group not recognized: %+v", article.Authors[1])
	}
}

func TestParseEntryMissingDOI(t *testing.T) {
	t.Parallel()

	html := `
	<div class="highwire-article-citation">
	  <a class="highwire-cite-linked-title" href="/content/x"><span class="highwire-cite-title">T</span></a>
	</div>`

	_, err := ParseEntry(document(t, html).Find("div.highwire-article-citation"), "neuroscience")
	if err == nil {
		t.Fatal("expected structural error for missing doi")
	}

	var se *domain.StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("expected StructuralError, got %T: %v", err, err)
	}
	if se.Field != "doi" {
		t.Fatalf("expected doi field, got %q", se.Field)
	}
}

func TestParseEntryMissingTitle(t *testing.T) {
	t.Parallel()

	html := `<div class="highwire-article-citation"></div>`
	_, err := ParseEntry(document(t, html).Find("div.highwire-article-citation"), "")
	if !domain.IsStructural(err) {
		t.Fatalf("expected structural error, got %v", err)
	}
}

func TestLastPage(t *testing.T) {
	t.Parallel()

	doc := document(t, `<ul class="pager"><li class="pager-last"><a href="/collection/genomics?page=41">last</a></li></ul>`)
	if got := LastPage(doc); got != 41 {
		t.Fatalf("expected last page 41, got %d", got)
	}

	if got := LastPage(document(t, `<div></div>`)); got != 0 {
		t.Fatalf("expected 0 without pager, got %d", got)
	}
}

func TestParseDetail(t *testing.T) {
	t.Parallel()

	html := `
	<head>
	  <meta name="citation_abstract" content="We assemble genomes." />
	  <meta name="citation_publication_date" content="2024/01/15" />
	  <meta name="citation_author" content="Jane Doe" />
	  <meta name="citation_author_institution" content="Example University; " />
	  <meta name="citation_author_email" content="jane@example.edu" />
	  <meta name="citation_author_orcid" content="http://orcid.org/0000-0002-1825-0097" />
	  <meta name="citation_author" content="Richard Roe" />
	</head>`

	detail := ParseDetail(document(t, html))

	if detail.Abstract != "We assemble genomes." {
		t.Fatalf("unexpected abstract: %q", detail.Abstract)
	}
	if detail.Posted.Year() != 2024 || int(detail.Posted.Month()) != 1 || detail.Posted.Day() != 15 {
		t.Fatalf("unexpected posted date: %v", detail.Posted)
	}

	if len(detail.Authors) != 2 {
		t.Fatalf("expected 2 authors, got %d", len(detail.Authors))
	}
	first := detail.Authors[0]
	if first.Given != "Jane" || first.Surname != "Doe" {
		t.Fatalf("unexpected author: %+v", first)
	}
	if first.Institution != "Example University" {
		t.Fatalf("trailing separator not stripped: %q", first.Institution)
	}
	if first.Email != "jane@example.edu" {
		t.Fatalf("unexpected email: %q", first.Email)
	}
	if first.ORCID != "0000-0002-1825-0097" {
		t.Fatalf("unexpected orcid: %q", first.ORCID)
	}
	if detail.Authors[1].Institution != "" {
		t.Fatalf("institution leaked onto second author: %q", detail.Authors[1].Institution)
	}
}

func TestParseDetailAbstractFallback(t *testing.T) {
	t.Parallel()

	html := `<body><div id="abstract-1">Inline abstract.</div></body>`
	detail := ParseDetail(document(t, html))
	if detail.Abstract != "Inline abstract." {
		t.Fatalf("unexpected abstract: %q", detail.Abstract)
	}
}

func TestParseMetrics(t *testing.T) {
	t.Parallel()

	html := `
	<div class="highwire-stats">
	  <table>
	    <tbody>
	      <tr><td>Nov 2023</td><td>1,204</td><td>310</td></tr>
	      <tr><td>December 2023</td><td>88</td><td>man</td><td>42</td></tr>
	      <tr><td>garbage row</td></tr>
	    </tbody>
	  </table>
	</div>`

	records := ParseMetrics(document(t, html))
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	if records[0].Month != 11 || records[0].Year != 2023 {
		t.Fatalf("unexpected first month: %+v", records[0])
	}
	if records[0].Abstract != 1204 || records[0].Downloads != 310 {
		t.Fatalf("unexpected first counts: %+v", records[0])
	}

	if records[1].Month != 12 || records[1].Downloads != 42 {
		t.Fatalf("unexpected second record: %+v", records[1])
	}
}
