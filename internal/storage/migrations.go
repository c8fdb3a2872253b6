package storage

// schema is applied on startup. Every statement is idempotent so migrations
// can run on every boot.
const schema = `
CREATE TABLE IF NOT EXISTS pages (
    id               BIGSERIAL PRIMARY KEY,
    url              TEXT NOT NULL,
    final_url        TEXT NOT NULL DEFAULT '',
    network          VARCHAR(16) NOT NULL,
    domain           TEXT NOT NULL,
    title            TEXT,
    body_text        TEXT,
    raw_html         TEXT,
    raw_html_hash    CHAR(64) NOT NULL,
    status_code      INT NOT NULL,
    content_type     TEXT,
    server_header    TEXT,
    language         TEXT,
    has_login_form   BOOLEAN NOT NULL DEFAULT FALSE,
    has_search_form  BOOLEAN NOT NULL DEFAULT FALSE,
    response_time_ms INT NOT NULL DEFAULT 0,
    fetched_at       TIMESTAMPTZ NOT NULL,
    UNIQUE (url, fetched_at)
);

CREATE INDEX IF NOT EXISTS idx_pages_domain ON pages (domain);
CREATE INDEX IF NOT EXISTS idx_pages_network ON pages (network);
CREATE INDEX IF NOT EXISTS idx_pages_hash ON pages (raw_html_hash);

CREATE TABLE IF NOT EXISTS headings (
    id      BIGSERIAL PRIMARY KEY,
    page_id BIGINT NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    level   INT NOT NULL CHECK (level IN (1, 2, 3)),
    text    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS entities (
    id          BIGSERIAL PRIMARY KEY,
    page_id     BIGINT NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    entity_type VARCHAR(32) NOT NULL,
    value       TEXT NOT NULL,
    found_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_type_value ON entities (entity_type, value);

CREATE TABLE IF NOT EXISTS links (
    id             BIGSERIAL PRIMARY KEY,
    source_page_id BIGINT NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    target_url     TEXT NOT NULL,
    anchor_text    TEXT NOT NULL DEFAULT '',
    is_onion       BOOLEAN NOT NULL DEFAULT FALSE,
    is_i2p         BOOLEAN NOT NULL DEFAULT FALSE,
    is_zeronet     BOOLEAN NOT NULL DEFAULT FALSE,
    is_hyphanet    BOOLEAN NOT NULL DEFAULT FALSE,
    is_lokinet     BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_links_target ON links (target_url);

CREATE TABLE IF NOT EXISTS correlations (
    id               BIGSERIAL PRIMARY KEY,
    domain           TEXT NOT NULL,
    correlation_type TEXT NOT NULL,
    value            TEXT NOT NULL,
    UNIQUE (domain, correlation_type, value)
);

CREATE INDEX IF NOT EXISTS idx_correlations_type_value ON correlations (correlation_type, value);

CREATE TABLE IF NOT EXISTS dead_urls (
    url             TEXT PRIMARY KEY,
    network         VARCHAR(16) NOT NULL,
    domain          TEXT NOT NULL,
    retry_count     INT NOT NULL,
    last_error      TEXT NOT NULL DEFAULT '',
    failure_type    VARCHAR(16) NOT NULL DEFAULT 'unreachable',
    last_attempt_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_dead_urls_network ON dead_urls (network, failure_type);
`
