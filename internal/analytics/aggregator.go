package analytics

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/trimrr/trimr/internal/models"
)

// LinkSummary is the per-link analytics rollup: a pure read-side fold
// over the click log restricted to a window. Computing it twice over the
// same click set yields identical results.
type LinkSummary struct {
	LinkID       int64                   `json:"link_id"`
	Window       string                  `json:"window"`
	TotalClicks  int                     `json:"total_clicks"`
	UniqueClicks int                     `json:"unique_clicks"`
	ByCountry    []models.DimensionCount `json:"by_country"`
	ByDevice     []models.DimensionCount `json:"by_device"`
	ByBrowser    []models.DimensionCount `json:"by_browser"`
	ByDay        []models.DayCount       `json:"by_day"`
}

type GlobalStats struct {
	TotalLinks  int `json:"total_links"`
	TotalClicks int `json:"total_clicks"`
	TotalOwners int `json:"total_owners"`
}

// WindowStart maps a window preset to its lower bound relative to now.
// Zero time means unbounded ("all").
func WindowStart(window string, now time.Time) (time.Time, error) {
	switch window {
	case "24h":
		return now.Add(-24 * time.Hour), nil
	case "7d":
		return now.AddDate(0, 0, -7), nil
	case "30d":
		return now.AddDate(0, 0, -30), nil
	case "", "all":
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("unknown window %q", window)
	}
}

// Summary folds a link's clicks within the window into dimension rollups.
func Summary(db *sql.DB, linkID int64, window string, now time.Time) (*LinkSummary, error) {
	since, err := WindowStart(window, now)
	if err != nil {
		return nil, err
	}

	total, unique, err := models.ClickTotals(db, linkID, since)
	if err != nil {
		return nil, err
	}

	s := &LinkSummary{
		LinkID:       linkID,
		Window:       window,
		TotalClicks:  total,
		UniqueClicks: unique,
	}
	if s.Window == "" {
		s.Window = "all"
	}

	if s.ByCountry, err = models.CountsByDimension(db, linkID, "country", since); err != nil {
		return nil, err
	}
	if s.ByDevice, err = models.CountsByDimension(db, linkID, "device_type", since); err != nil {
		return nil, err
	}
	if s.ByBrowser, err = models.CountsByDimension(db, linkID, "browser", since); err != nil {
		return nil, err
	}
	if s.ByDay, err = models.ClicksByDay(db, linkID, since); err != nil {
		return nil, err
	}
	return s, nil
}

// Stats is the cross-entity rollup consumed by dashboards. Read-only;
// eventual consistency with in-flight admissions is acceptable.
func Stats(db *sql.DB) (*GlobalStats, error) {
	g := &GlobalStats{}
	var err error
	if g.TotalLinks, err = models.TotalLinkCount(db); err != nil {
		return nil, fmt.Errorf("total links: %w", err)
	}
	if g.TotalClicks, err = models.TotalClickCount(db); err != nil {
		return nil, fmt.Errorf("total clicks: %w", err)
	}
	if g.TotalOwners, err = models.TotalOwnerCount(db); err != nil {
		return nil, fmt.Errorf("total owners: %w", err)
	}
	return g, nil
}
