package models

import (
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrAliasTaken is returned when a short code or custom alias collides
// with the global uniqueness namespace (both columns share one namespace).
var ErrAliasTaken = errors.New("alias already taken")

type UTMParams struct {
	Source   string `json:"source"`
	Medium   string `json:"medium"`
	Campaign string `json:"campaign"`
	Term     string `json:"term"`
	Content  string `json:"content"`
}

func (u UTMParams) IsZero() bool {
	return u == UTMParams{}
}

type Link struct {
	ID               int64      `json:"id"`
	ShortCode        string     `json:"short_code"`
	CustomAlias      string     `json:"custom_alias,omitempty"`
	OriginalURL      string     `json:"original_url"`
	Owner            string     `json:"owner"`
	UTM              UTMParams  `json:"utm"`
	IsActive         bool       `json:"is_active"`
	StartAt          *time.Time `json:"start_at,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	IsLocked         bool       `json:"is_locked"`
	PasswordHash     string     `json:"-"`
	MaxClicks        *int64     `json:"max_clicks,omitempty"`
	ClickCount       int64      `json:"click_count"`
	UniqueClickCount int64      `json:"unique_click_count"`
	PixelScript      string     `json:"pixel_script,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// DestinationURL returns the redirect target with any configured UTM
// parameters appended. The stored original URL is never mutated.
func (l *Link) DestinationURL() string {
	if l.UTM.IsZero() {
		return l.OriginalURL
	}
	u, err := url.Parse(l.OriginalURL)
	if err != nil {
		return l.OriginalURL
	}
	q := u.Query()
	for param, value := range map[string]string{
		"utm_source":   l.UTM.Source,
		"utm_medium":   l.UTM.Medium,
		"utm_campaign": l.UTM.Campaign,
		"utm_term":     l.UTM.Term,
		"utm_content":  l.UTM.Content,
	} {
		if value != "" {
			q.Set(param, value)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

// CodeInUse reports whether code already occupies the uniqueness
// namespace, matching either short_code or custom_alias.
func CodeInUse(q Querier, code string) (bool, error) {
	var count int
	err := q.QueryRow(`SELECT COUNT(*) FROM links WHERE short_code = ? OR custom_alias = ?`, code, code).Scan(&count)
	return count > 0, err
}

// CreateLink inserts a link, enforcing the shared uniqueness namespace
// over short_code and custom_alias. The pre-check and insert run in one
// transaction so two concurrent creates for the same alias cannot both
// succeed; the UNIQUE constraints remain as a backstop.
func CreateLink(db *sql.DB, l *Link) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	codes := []string{l.ShortCode}
	if l.CustomAlias != "" {
		codes = append(codes, l.CustomAlias)
	}
	for _, code := range codes {
		taken, err := CodeInUse(tx, code)
		if err != nil {
			return fmt.Errorf("check namespace: %w", err)
		}
		if taken {
			return ErrAliasTaken
		}
	}

	res, err := tx.Exec(
		`INSERT INTO links (short_code, custom_alias, original_url, owner,
			utm_source, utm_medium, utm_campaign, utm_term, utm_content,
			start_at, expires_at, is_locked, password_hash, max_clicks, pixel_script)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ShortCode, nullString(l.CustomAlias), l.OriginalURL, l.Owner,
		l.UTM.Source, l.UTM.Medium, l.UTM.Campaign, l.UTM.Term, l.UTM.Content,
		nullTime(l.StartAt), nullTime(l.ExpiresAt), boolToInt(l.IsLocked),
		l.PasswordHash, nullInt(l.MaxClicks), l.PixelScript,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAliasTaken
		}
		return fmt.Errorf("insert link: %w", err)
	}
	id, _ := res.LastInsertId()
	l.ID = id

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit link: %w", err)
	}

	// Re-read to get timestamps and defaults
	return GetLinkByID(db, l)
}

func GetLinkByID(db *sql.DB, l *Link) error {
	row := db.QueryRow(selectLink+` WHERE id = ?`, l.ID)
	return scanLink(row, l)
}

// GetLinkByCode looks a link up by either its short code or its custom alias.
func GetLinkByCode(db *sql.DB, code string) (*Link, error) {
	l := &Link{}
	row := db.QueryRow(selectLink+` WHERE short_code = ? OR custom_alias = ?`, code, code)
	if err := scanLink(row, l); err != nil {
		return nil, err
	}
	return l, nil
}

func ListLinks(db *sql.DB, limit, offset int, search string) ([]Link, int, error) {
	var args []any
	where := "1=1"
	if search != "" {
		where = "(short_code LIKE ? OR custom_alias LIKE ? OR original_url LIKE ?)"
		s := "%" + search + "%"
		args = append(args, s, s, s)
	}

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM links WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count links: %w", err)
	}

	query := selectLink + ` WHERE ` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := scanLinkRows(rows, &l); err != nil {
			return nil, 0, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, total, rows.Err()
}

// UpdateLink rewrites the owner-editable fields. Counters are never
// touched here; only AdmitClick moves them.
func UpdateLink(db *sql.DB, l *Link) error {
	_, err := db.Exec(
		`UPDATE links SET original_url = ?, utm_source = ?, utm_medium = ?,
			utm_campaign = ?, utm_term = ?, utm_content = ?, is_active = ?,
			start_at = ?, expires_at = ?, is_locked = ?, password_hash = ?,
			max_clicks = ?, pixel_script = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		l.OriginalURL, l.UTM.Source, l.UTM.Medium, l.UTM.Campaign, l.UTM.Term,
		l.UTM.Content, boolToInt(l.IsActive), nullTime(l.StartAt), nullTime(l.ExpiresAt),
		boolToInt(l.IsLocked), l.PasswordHash, nullInt(l.MaxClicks), l.PixelScript, l.ID,
	)
	if err != nil {
		return fmt.Errorf("update link: %w", err)
	}
	return GetLinkByID(db, l)
}

// DeleteLink removes a link and its click history.
func DeleteLink(db *sql.DB, id int64) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM clicks WHERE link_id = ?`, id); err != nil {
		return fmt.Errorf("delete clicks: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM links WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// PurgeExpired physically removes links whose expires_at has passed,
// along with their click history. Resolution re-validates expiry live,
// so a row the sweep has not reached yet is still denied.
func PurgeExpired(db *sql.DB, now time.Time) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM clicks WHERE link_id IN (SELECT id FROM links WHERE expires_at IS NOT NULL AND expires_at <= ?)`,
		now,
	); err != nil {
		return 0, fmt.Errorf("purge clicks: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM links WHERE expires_at IS NOT NULL AND expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("purge links: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}

// HashPassword derives the stored form of a link password. Verification
// proper lives with the identity collaborator; this is the storage shape.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func VerifyPassword(hash, candidate string) bool {
	if hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hash), []byte(HashPassword(candidate))) == 1
}

const selectLink = `SELECT id, short_code, custom_alias, original_url, owner,
	utm_source, utm_medium, utm_campaign, utm_term, utm_content,
	is_active, start_at, expires_at, is_locked, password_hash,
	max_clicks, click_count, unique_click_count, pixel_script,
	created_at, updated_at FROM links`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLinkFields(row rowScanner, l *Link) error {
	var (
		alias     sql.NullString
		active    int
		startAt   sql.NullTime
		expiresAt sql.NullTime
		locked    int
		maxClicks sql.NullInt64
	)
	if err := row.Scan(
		&l.ID, &l.ShortCode, &alias, &l.OriginalURL, &l.Owner,
		&l.UTM.Source, &l.UTM.Medium, &l.UTM.Campaign, &l.UTM.Term, &l.UTM.Content,
		&active, &startAt, &expiresAt, &locked, &l.PasswordHash,
		&maxClicks, &l.ClickCount, &l.UniqueClickCount, &l.PixelScript,
		&l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return err
	}
	l.CustomAlias = alias.String
	l.IsActive = active == 1
	l.IsLocked = locked == 1
	if startAt.Valid {
		t := startAt.Time
		l.StartAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		l.ExpiresAt = &t
	}
	if maxClicks.Valid {
		m := maxClicks.Int64
		l.MaxClicks = &m
	}
	return nil
}

func scanLink(row *sql.Row, l *Link) error {
	return scanLinkFields(row, l)
}

func scanLinkRows(rows *sql.Rows, l *Link) error {
	return scanLinkFields(rows, l)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullInt(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
