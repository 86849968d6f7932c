package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/trimrr/trimr/internal/db"
	"github.com/trimrr/trimr/internal/models"
)

type seedLink struct {
	code  string
	alias string
	dest  string
	// weight controls relative click volume (higher = more clicks)
	weight float64
}

var seedLinks = []seedLink{
	{"x7GmKp2", "docs", "https://example.dev/docs", 5.0},
	{"q9RtWn4", "api", "https://example.dev/developers/api", 4.5},
	{"Vb3HjLs", "setup", "https://example.dev/docs/install", 4.0},
	{"ms8KdQw", "", "https://example.dev/blog/launch", 3.2},
	{"Zp4XcVr", "pricing", "https://example.dev/pricing", 2.8},
	{"nW6TgHb", "", "https://example.dev/changelog", 2.3},
	{"kD2MfRs", "community", "https://forum.example.dev", 1.8},
	{"jQ5PzXt", "", "https://example.dev/security", 1.2},
}

var referrers = []weighted[string]{
	{"google.com", 30},
	{"", 20}, // direct traffic
	{"github.com", 15},
	{"twitter.com", 8},
	{"reddit.com", 7},
	{"news.ycombinator.com", 5},
	{"linkedin.com", 4},
	{"t.co", 1},
}

var countries = []weighted[string]{
	{"US", 25}, {"IN", 20}, {"DE", 8}, {"GB", 7}, {"BR", 6},
	{"FR", 5}, {"CA", 4}, {"AU", 3}, {"JP", 3}, {"NL", 2},
	{"SG", 2}, {"ES", 2}, {"PL", 1.5}, {"SE", 1}, {"MX", 1},
}

var browsers = []weighted[[2]string]{
	{[2]string{"Chrome", "120"}, 45},
	{[2]string{"Chrome", "119"}, 10},
	{[2]string{"Firefox", "121"}, 15},
	{[2]string{"Safari", "17"}, 12},
	{[2]string{"Edge", "120"}, 8},
	{[2]string{"Safari", "16"}, 5},
}

var oses = []weighted[string]{
	{"Windows", 35}, {"macOS", 25}, {"Linux", 15}, {"Android", 15}, {"iOS", 10},
}

var deviceTypes = []weighted[string]{
	{"desktop", 65}, {"mobile", 30}, {"tablet", 5},
}

type weighted[T any] struct {
	v      T
	weight float64
}

func pick[T any](items []weighted[T], rng *rand.Rand) T {
	var total float64
	for _, item := range items {
		total += item.weight
	}
	r := rng.Float64() * total
	for _, item := range items {
		r -= item.weight
		if r <= 0 {
			return item.v
		}
	}
	return items[len(items)-1].v
}

func main() {
	dbPath := os.Getenv("TRIMR_DB_PATH")
	if dbPath == "" {
		dbPath = "./trimr.db"
	}

	database, err := db.Open(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer database.Close()

	rng := rand.New(rand.NewSource(42)) // deterministic seed
	now := time.Now().UTC()
	sixMonthsAgo := now.AddDate(0, -6, 0)

	fmt.Println("Seeding links...")

	created := make([]models.Link, 0, len(seedLinks))
	for i, sl := range seedLinks {
		link := models.Link{
			ShortCode:   sl.code,
			CustomAlias: sl.alias,
			OriginalURL: sl.dest,
			Owner:       "seed",
			UTM:         models.UTMParams{Source: "trimr", Medium: "short-link"},
		}
		if err := models.CreateLink(database, &link); err != nil {
			log.Fatalf("create link %q: %v", sl.code, err)
		}

		// Backdate the created_at, staggered over the first month
		createdAt := sixMonthsAgo.Add(time.Duration(i*4) * 24 * time.Hour)
		if _, err := database.Exec(`UPDATE links SET created_at = ?, updated_at = ? WHERE id = ?`, createdAt, createdAt, link.ID); err != nil {
			log.Fatalf("backdate link %q: %v", sl.code, err)
		}
		created = append(created, link)
		fmt.Printf("  [%2d] /%s → %s\n", link.ID, sl.code, sl.dest)
	}

	fmt.Println("\nGenerating clicks...")

	lastSeen := make(map[string]time.Time) // (linkID|ip) → last click
	totalClicks := 0

	for li, sl := range seedLinks {
		link := created[li]
		n := int(sl.weight * 400)
		var clickCount, uniqueCount int64

		for range n {
			at := sixMonthsAgo.Add(time.Duration(rng.Int63n(int64(now.Sub(sixMonthsAgo)))))
			ip := fmt.Sprintf("198.51.%d.%d", rng.Intn(80), rng.Intn(250)+1)
			b := pick(browsers, rng)

			// Approximate the 24h dedup window; good enough for demo data.
			key := fmt.Sprintf("%d|%s", link.ID, ip)
			last, seen := lastSeen[key]
			unique := !seen || at.Sub(last) >= models.UniqueWindow
			if !seen || at.After(last) {
				lastSeen[key] = at
			}

			click := models.Click{
				LinkID:         link.ID,
				ClickedAt:      at,
				IP:             ip,
				UserAgent:      "seed/1.0",
				RefererDomain:  pick(referrers, rng),
				Country:        pick(countries, rng),
				Browser:        b[0],
				BrowserVersion: b[1],
				OS:             pick(oses, rng),
				DeviceType:     pick(deviceTypes, rng),
				IsUnique:       unique,
			}
			if err := models.InsertClick(database, &click); err != nil {
				log.Fatalf("insert click: %v", err)
			}
			clickCount++
			if unique {
				uniqueCount++
			}
		}

		if _, err := database.Exec(
			`UPDATE links SET click_count = ?, unique_click_count = ? WHERE id = ?`,
			clickCount, uniqueCount, link.ID,
		); err != nil {
			log.Fatalf("set counters: %v", err)
		}
		totalClicks += int(clickCount)
	}

	fmt.Printf("\nDone: %d links, %d clicks\n", len(created), totalClicks)
}
