package models

import (
	"database/sql"
	"fmt"
	"time"
)

// UniqueWindow is the trailing window over which a repeat visit from the
// same IP is considered non-unique.
const UniqueWindow = 24 * time.Hour

type Click struct {
	ID             int64
	LinkID         int64
	ClickedAt      time.Time
	IP             string
	UserAgent      string
	Referer        string
	RefererDomain  string
	Country        string
	City           string
	Region         string
	Browser        string
	BrowserVersion string
	OS             string
	DeviceType     string
	IsUnique       bool
}

// HasRecentClick reports whether any click for (linkID, ip) exists within
// the trailing window ending at now. Point-in-time predicate: it is
// evaluated once at ingestion and the result frozen on the click row.
func HasRecentClick(q Querier, linkID int64, ip string, now time.Time) (bool, error) {
	var count int
	err := q.QueryRow(
		`SELECT COUNT(*) FROM clicks WHERE link_id = ? AND ip = ? AND clicked_at > ? AND clicked_at <= ?`,
		linkID, ip, now.Add(-UniqueWindow), now,
	).Scan(&count)
	return count > 0, err
}

// AdmitClick performs the per-visit write unit in a single transaction:
// the uniqueness predicate, the quota-conditional counter increment and
// the click row insert either all happen or none do. The increment is
// refused at the database when click_count has reached max_clicks, which
// makes the quota boundary safe under concurrent resolvers: no more
// than max_clicks visits are ever admitted. Returns false when the quota
// (or a concurrent purge) refused the visit.
func AdmitClick(db *sql.DB, c *Click) (bool, error) {
	tx, err := db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	prior, err := HasRecentClick(tx, c.LinkID, c.IP, c.ClickedAt)
	if err != nil {
		return false, fmt.Errorf("uniqueness check: %w", err)
	}
	c.IsUnique = !prior && c.DeviceType != "bot"

	uniqueInc := 0
	if c.IsUnique {
		uniqueInc = 1
	}
	res, err := tx.Exec(
		`UPDATE links SET click_count = click_count + 1,
			unique_click_count = unique_click_count + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND (max_clicks IS NULL OR click_count < max_clicks)`,
		uniqueInc, c.LinkID,
	)
	if err != nil {
		return false, fmt.Errorf("increment click count: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}

	if err := insertClick(tx, c); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit click: %w", err)
	}
	return true, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertClick(e execer, c *Click) error {
	res, err := e.Exec(
		`INSERT INTO clicks (link_id, clicked_at, ip, user_agent, referer, referer_domain,
			country, city, region, browser, browser_version, os, device_type, is_unique)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.LinkID, c.ClickedAt, c.IP, c.UserAgent, c.Referer, c.RefererDomain,
		c.Country, c.City, c.Region, c.Browser, c.BrowserVersion, c.OS,
		c.DeviceType, boolToInt(c.IsUnique),
	)
	if err != nil {
		return fmt.Errorf("insert click: %w", err)
	}
	id, _ := res.LastInsertId()
	c.ID = id
	return nil
}

// InsertClick appends a click row without moving counters. Used by the
// seed tool; the resolver path always goes through AdmitClick.
func InsertClick(db *sql.DB, c *Click) error {
	return insertClick(db, c)
}
