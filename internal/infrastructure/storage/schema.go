package storage

// schema bootstraps the tables this pipeline owns. The presentation layer
// reads the active rank tables; it never writes them.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS articles (
		id SERIAL PRIMARY KEY,
		url TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		doi TEXT NOT NULL UNIQUE,
		abstract TEXT,
		collection TEXT,
		posted DATE,
		last_crawled DATE
	)`,
	`CREATE TABLE IF NOT EXISTS authors (
		id SERIAL PRIMARY KEY,
		given TEXT NOT NULL,
		surname TEXT NOT NULL DEFAULT '',
		institution TEXT,
		orcid TEXT UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS author_emails (
		author INTEGER NOT NULL REFERENCES authors(id),
		email TEXT NOT NULL,
		UNIQUE (author, email)
	)`,
	`CREATE TABLE IF NOT EXISTS article_authors (
		id SERIAL PRIMARY KEY,
		article INTEGER NOT NULL REFERENCES articles(id),
		author INTEGER NOT NULL REFERENCES authors(id),
		UNIQUE (article, author)
	)`,
	`CREATE TABLE IF NOT EXISTS article_traffic (
		article INTEGER NOT NULL REFERENCES articles(id),
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		abstract INTEGER NOT NULL DEFAULT 0,
		pdf INTEGER NOT NULL DEFAULT 0,
		UNIQUE (article, month, year)
	)`,
	rankTableDDL("alltime_ranks", "article", false),
	rankTableDDL("alltime_ranks_working", "article", false),
	rankTableDDL("ytd_ranks", "article", false),
	rankTableDDL("ytd_ranks_working", "article", false),
	rankTableDDL("month_ranks", "article", false),
	rankTableDDL("month_ranks_working", "article", false),
	rankTableDDL("category_ranks", "article", false),
	rankTableDDL("category_ranks_working", "article", false),
	rankTableDDL("author_ranks", "author", false),
	rankTableDDL("author_ranks_working", "author", false),
	rankTableDDL("author_ranks_category", "author", true),
	rankTableDDL("author_ranks_category_working", "author", true),
}

func rankTableDDL(name, entity string, category bool) string {
	extra := ""
	if category {
		extra = `,
		category TEXT NOT NULL`
	}
	return `CREATE TABLE IF NOT EXISTS ` + name + ` (
		` + entity + ` INTEGER NOT NULL,
		rank INTEGER NOT NULL,
		downloads INTEGER NOT NULL,
		tie BOOLEAN NOT NULL DEFAULT FALSE` + extra + `
	)`
}
