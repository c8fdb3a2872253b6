// Package storage is the Postgres persistence layer: pages with their
// headings, entities, and links, cross-site correlations, and the permanent
// dead-URL record.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/veilcrawl/veilcrawl/internal/types"
)

// Store wraps the Postgres pool.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// New connects with a default pool size.
func New(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	return NewWithPoolSize(ctx, databaseURL, 10, logger)
}

// NewWithPoolSize connects to Postgres, sized to the worker count plus
// headroom for the storage task.
func NewWithPoolSize(ctx context.Context, databaseURL string, maxConns int, logger *slog.Logger) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns / 2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	logger = logger.With("component", "storage")
	logger.Info("connected to postgres", "max_connections", maxConns)
	return &Store{db: db, logger: logger}, nil
}

// RunMigrations applies the embedded schema.
func (s *Store) RunMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	s.logger.Info("migrations complete")
	return nil
}

// CheckConnectivity pings the database.
func (s *Store) CheckConnectivity(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the pool.
func (s *Store) Close() error { return s.db.Close() }

// StorePage persists a page with its headings, entities, and links in one
// transaction. Idempotent on (url, fetched_at): a second write with the same
// key updates the body instead of duplicating the row.
func (s *Store) StorePage(ctx context.Context, page *types.PageData) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var pageID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO pages (url, final_url, network, domain, title, body_text, raw_html, raw_html_hash,
		                    status_code, content_type, server_header, language, has_login_form,
		                    has_search_form, response_time_ms, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (url, fetched_at) DO UPDATE
		     SET body_text = EXCLUDED.body_text, raw_html = EXCLUDED.raw_html
		 RETURNING id`,
		page.URL, page.FinalURL, page.Network, page.Domain, page.Title, page.BodyText,
		page.RawHTML, page.RawHTMLHash, page.StatusCode, page.ContentType,
		page.Metadata.ServerHeader, page.Metadata.Language, page.Metadata.HasLoginForm,
		page.Metadata.HasSearchForm, page.ResponseTimeMS, page.FetchedAt,
	).Scan(&pageID)
	if err != nil {
		return 0, fmt.Errorf("insert page: %w", err)
	}

	if err := insertHeadings(ctx, tx, pageID, page); err != nil {
		return 0, err
	}
	if err := insertEntities(ctx, tx, pageID, &page.Entities); err != nil {
		return 0, err
	}
	if err := insertLinks(ctx, tx, pageID, page.Links); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return pageID, nil
}

func insertHeadings(ctx context.Context, tx *sqlx.Tx, pageID int64, page *types.PageData) error {
	var levels []int64
	var texts []string
	for _, group := range []struct {
		level int64
		hs    []string
	}{{1, page.H1}, {2, page.H2}, {3, page.H3}} {
		for _, h := range group.hs {
			levels = append(levels, group.level)
			texts = append(texts, h)
		}
	}
	if len(levels) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO headings (page_id, level, text)
		 SELECT $1, * FROM UNNEST($2::int[], $3::text[])`,
		pageID, pq.Array(levels), pq.Array(texts))
	if err != nil {
		return fmt.Errorf("insert headings: %w", err)
	}
	return nil
}

func insertEntities(ctx context.Context, tx *sqlx.Tx, pageID int64, e *types.ExtractedEntities) error {
	groups := []struct {
		entityType string
		values     []string
	}{
		{"email", e.Emails},
		{"onion_address", e.OnionAddresses},
		{"i2p_address", e.I2PAddresses},
		{"bitcoin", e.BitcoinAddresses},
		{"monero", e.MoneroAddresses},
		{"ethereum", e.EthereumAddresses},
		{"phone", e.PhoneNumbers},
		{"pgp_fingerprint", e.PGPFingerprints},
		{"username", e.Usernames},
	}

	var entityTypes, values []string
	for _, g := range groups {
		for _, v := range g.values {
			entityTypes = append(entityTypes, g.entityType)
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO entities (page_id, entity_type, value, found_at)
		 SELECT $1, t, v, NOW() FROM UNNEST($2::varchar[], $3::text[]) AS u(t, v)`,
		pageID, pq.Array(entityTypes), pq.Array(values))
	if err != nil {
		return fmt.Errorf("insert entities: %w", err)
	}
	return nil
}

func insertLinks(ctx context.Context, tx *sqlx.Tx, pageID int64, links []types.ExtractedLink) error {
	if len(links) == 0 {
		return nil
	}
	var targets, anchors []string
	var onion, i2p, zeronet, hyphanet, lokinet []bool
	for _, l := range links {
		targets = append(targets, l.URL)
		anchors = append(anchors, l.AnchorText)
		onion = append(onion, l.IsOnion)
		i2p = append(i2p, l.IsI2P)
		zeronet = append(zeronet, l.IsZeronet)
		hyphanet = append(hyphanet, l.IsHyphanet)
		lokinet = append(lokinet, l.IsLokinet)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO links (source_page_id, target_url, anchor_text, is_onion, is_i2p, is_zeronet, is_hyphanet, is_lokinet)
		 SELECT $1, * FROM UNNEST($2::text[], $3::text[], $4::bool[], $5::bool[], $6::bool[], $7::bool[], $8::bool[])`,
		pageID, pq.Array(targets), pq.Array(anchors), pq.Array(onion), pq.Array(i2p),
		pq.Array(zeronet), pq.Array(hyphanet), pq.Array(lokinet))
	if err != nil {
		return fmt.Errorf("insert links: %w", err)
	}
	return nil
}

// StoreCorrelation upserts one fingerprint; conflicts on the unique triple
// are ignored.
func (s *Store) StoreCorrelation(ctx context.Context, domain, correlationType, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO correlations (domain, correlation_type, value) VALUES ($1, $2, $3)
		 ON CONFLICT (domain, correlation_type, value) DO NOTHING`,
		domain, correlationType, value)
	return err
}

// MarkDead records a permanently failed URL. Repeated marks refresh the
// retry count, error, classification, and timestamp without duplicating the
// row.
func (s *Store) MarkDead(ctx context.Context, url, network, domain string, retryCount int, lastError, failureType string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_urls (url, network, domain, retry_count, last_error, failure_type, last_attempt_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (url) DO UPDATE
		     SET retry_count = EXCLUDED.retry_count,
		         last_error = EXCLUDED.last_error,
		         failure_type = EXCLUDED.failure_type,
		         last_attempt_at = NOW()`,
		url, network, domain, retryCount, lastError, failureType)
	return err
}

// IsDead reports whether a URL is in the dead table.
func (s *Store) IsDead(ctx context.Context, url string) (bool, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM dead_urls WHERE url = $1`, url)
	return count > 0, err
}

// LoadDeadURLs returns every dead URL for startup hydration.
func (s *Store) LoadDeadURLs(ctx context.Context) ([]string, error) {
	var urls []string
	err := s.db.SelectContext(ctx, &urls, `SELECT url FROM dead_urls`)
	return urls, err
}

// ClearDeadURLsForNetwork deletes a network's unreachable entries so they
// can be retried. URLs classified "dead" are never resurrected.
func (s *Store) ClearDeadURLsForNetwork(ctx context.Context, network string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM dead_urls WHERE network = $1 AND failure_type = 'unreachable'`, network)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LoadAllKnownURLs returns every URL ever stored or dead-listed. Available
// for priming the dedup set across sessions; the orchestrator does not call
// it today so pages are revisited each run.
func (s *Store) LoadAllKnownURLs(ctx context.Context) ([]string, error) {
	var urls []string
	err := s.db.SelectContext(ctx, &urls,
		`SELECT DISTINCT url FROM pages UNION SELECT url FROM dead_urls`)
	return urls, err
}

func (s *Store) GetPageCount(ctx context.Context) (int64, error)  { return s.count(ctx, "pages") }
func (s *Store) GetEntityCount(ctx context.Context) (int64, error) { return s.count(ctx, "entities") }
func (s *Store) GetLinkCount(ctx context.Context) (int64, error)  { return s.count(ctx, "links") }
func (s *Store) GetCorrelationCount(ctx context.Context) (int64, error) {
	return s.count(ctx, "correlations")
}
func (s *Store) GetDeadURLCount(ctx context.Context) (int64, error) {
	return s.count(ctx, "dead_urls")
}

func (s *Store) count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table)
	return n, err
}
