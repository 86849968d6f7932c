package db

import "database/sql"

func Migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS links (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    short_code         TEXT    NOT NULL UNIQUE,
    custom_alias       TEXT    UNIQUE,
    original_url       TEXT    NOT NULL,
    owner              TEXT    NOT NULL DEFAULT '',
    utm_source         TEXT    NOT NULL DEFAULT '',
    utm_medium         TEXT    NOT NULL DEFAULT '',
    utm_campaign       TEXT    NOT NULL DEFAULT '',
    utm_term           TEXT    NOT NULL DEFAULT '',
    utm_content        TEXT    NOT NULL DEFAULT '',
    is_active          INTEGER NOT NULL DEFAULT 1,
    start_at           DATETIME,
    expires_at         DATETIME,
    is_locked          INTEGER NOT NULL DEFAULT 0,
    password_hash      TEXT    NOT NULL DEFAULT '',
    max_clicks         INTEGER,
    click_count        INTEGER NOT NULL DEFAULT 0,
    unique_click_count INTEGER NOT NULL DEFAULT 0,
    pixel_script       TEXT    NOT NULL DEFAULT '',
    created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_links_expires_at ON links(expires_at) WHERE expires_at IS NOT NULL;

CREATE TABLE IF NOT EXISTS clicks (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    link_id         INTEGER NOT NULL,
    clicked_at      DATETIME NOT NULL,
    ip              TEXT    NOT NULL,
    user_agent      TEXT,
    referer         TEXT,
    referer_domain  TEXT,
    country         TEXT,
    city            TEXT,
    region          TEXT,
    browser         TEXT,
    browser_version TEXT,
    os              TEXT,
    device_type     TEXT,
    is_unique       INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (link_id) REFERENCES links(id)
);

CREATE INDEX IF NOT EXISTS idx_clicks_link_ip_time ON clicks(link_id, ip, clicked_at);
CREATE INDEX IF NOT EXISTS idx_clicks_clicked_at ON clicks(clicked_at);
`
