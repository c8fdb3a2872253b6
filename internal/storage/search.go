package storage

import (
	"context"
	"time"
)

// SearchResult is one full-text hit.
type SearchResult struct {
	PageID    int64     `db:"id"`
	URL       string    `db:"url"`
	Title     *string   `db:"title"`
	Network   string    `db:"network"`
	Domain    string    `db:"domain"`
	Snippet   *string   `db:"snippet"`
	FetchedAt time.Time `db:"fetched_at"`
}

// EntityResult is one entity hit joined to its source page.
type EntityResult struct {
	EntityID   int64   `db:"id"`
	PageID     int64   `db:"page_id"`
	EntityType string  `db:"entity_type"`
	Value      string  `db:"value"`
	PageURL    string  `db:"url"`
	PageTitle  *string `db:"title"`
}

// SearchText matches pages whose body, title, or raw HTML contain the query.
func (s *Store) SearchText(ctx context.Context, query string, limit int64) ([]SearchResult, error) {
	pattern := "%" + query + "%"
	var results []SearchResult
	err := s.db.SelectContext(ctx, &results,
		`SELECT id, url, title, network, domain, LEFT(body_text, 200) AS snippet, fetched_at
		 FROM pages
		 WHERE body_text ILIKE $1 OR title ILIKE $1 OR raw_html ILIKE $1
		 ORDER BY fetched_at DESC
		 LIMIT $2`,
		pattern, limit)
	return results, err
}

// SearchEntity matches entities by value, optionally filtered by type.
func (s *Store) SearchEntity(ctx context.Context, entityType, value string, limit int64) ([]EntityResult, error) {
	pattern := "%" + value + "%"
	var results []EntityResult
	var err error
	if entityType != "" {
		err = s.db.SelectContext(ctx, &results,
			`SELECT e.id, e.page_id, e.entity_type, e.value, p.url, p.title
			 FROM entities e
			 JOIN pages p ON p.id = e.page_id
			 WHERE e.entity_type = $1 AND e.value ILIKE $2
			 ORDER BY e.found_at DESC
			 LIMIT $3`,
			entityType, pattern, limit)
	} else {
		err = s.db.SelectContext(ctx, &results,
			`SELECT e.id, e.page_id, e.entity_type, e.value, p.url, p.title
			 FROM entities e
			 JOIN pages p ON p.id = e.page_id
			 WHERE e.value ILIKE $1
			 ORDER BY e.found_at DESC
			 LIMIT $2`,
			pattern, limit)
	}
	return results, err
}

// ExportedPage is the JSON shape of one exported page.
type ExportedPage struct {
	URL        string    `db:"url" json:"url"`
	Network    string    `db:"network" json:"network"`
	Domain     string    `db:"domain" json:"domain"`
	Title      *string   `db:"title" json:"title,omitempty"`
	BodyText   *string   `db:"body_text" json:"body_text,omitempty"`
	StatusCode int       `db:"status_code" json:"status_code"`
	FetchedAt  time.Time `db:"fetched_at" json:"fetched_at"`
}

// ExportPages streams all pages for the export subcommand.
func (s *Store) ExportPages(ctx context.Context) ([]ExportedPage, error) {
	var pages []ExportedPage
	err := s.db.SelectContext(ctx, &pages,
		`SELECT url, network, domain, title, body_text, status_code, fetched_at
		 FROM pages ORDER BY fetched_at`)
	return pages, err
}
