package models

import (
	"database/sql"
	"fmt"
	"time"
)

type DimensionCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// ClickTotals returns the total and unique click counts for a link within
// the window starting at since (zero since means all time).
func ClickTotals(db *sql.DB, linkID int64, since time.Time) (total, unique int, err error) {
	query := `SELECT COUNT(*), COALESCE(SUM(is_unique), 0) FROM clicks WHERE link_id = ?`
	args := []any{linkID}
	if !since.IsZero() {
		query += ` AND clicked_at >= ?`
		args = append(args, since)
	}
	err = db.QueryRow(query, args...).Scan(&total, &unique)
	if err != nil {
		err = fmt.Errorf("click totals: %w", err)
	}
	return total, unique, err
}

// CountsByDimension groups a link's clicks over one of the click columns.
// The column name is restricted to a fixed set; it is never caller input.
func CountsByDimension(db *sql.DB, linkID int64, column string, since time.Time) ([]DimensionCount, error) {
	switch column {
	case "country", "device_type", "browser", "os", "referer_domain":
	default:
		return nil, fmt.Errorf("unsupported dimension %q", column)
	}

	query := fmt.Sprintf(
		`SELECT %s, COUNT(*) as cnt FROM clicks WHERE link_id = ? AND %s != ''`,
		column, column,
	)
	args := []any{linkID}
	if !since.IsZero() {
		query += ` AND clicked_at >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY ` + column + ` ORDER BY cnt DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("counts by %s: %w", column, err)
	}
	defer rows.Close()

	var results []DimensionCount
	for rows.Next() {
		var d DimensionCount
		if err := rows.Scan(&d.Key, &d.Count); err != nil {
			return nil, fmt.Errorf("scan %s: %w", column, err)
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// ClicksByDay returns daily click counts for a link, oldest day first.
func ClicksByDay(db *sql.DB, linkID int64, since time.Time) ([]DayCount, error) {
	query := `SELECT date(clicked_at), COUNT(*) FROM clicks WHERE link_id = ?`
	args := []any{linkID}
	if !since.IsZero() {
		query += ` AND clicked_at >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY date(clicked_at) ORDER BY date(clicked_at)`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("clicks by day: %w", err)
	}
	defer rows.Close()

	var results []DayCount
	for rows.Next() {
		var d DayCount
		if err := rows.Scan(&d.Day, &d.Count); err != nil {
			return nil, fmt.Errorf("scan day: %w", err)
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

func TotalLinkCount(db *sql.DB) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM links`).Scan(&count)
	return count, err
}

func TotalClickCount(db *sql.DB) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COALESCE(SUM(click_count), 0) FROM links`).Scan(&count)
	return count, err
}

func TotalOwnerCount(db *sql.DB) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(DISTINCT owner) FROM links WHERE owner != ''`).Scan(&count)
	return count, err
}
