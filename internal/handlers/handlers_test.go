package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trimrr/trimr/internal/analytics"
	"github.com/trimrr/trimr/internal/cache"
	"github.com/trimrr/trimr/internal/config"
	"github.com/trimrr/trimr/internal/db"
	"github.com/trimrr/trimr/internal/geo"
	"github.com/trimrr/trimr/internal/models"
	"github.com/trimrr/trimr/internal/resolver"
)

const (
	testAPIKey = "test-key"
	uaDesktop  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

func testRouter(t *testing.T) (chi.Router, *sql.DB, *cache.LinkCache) {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })

	g, _ := geo.Open("")
	cfg := &config.Config{APIKey: testAPIKey, BaseURL: "http://localhost:8080"}
	linkCache := cache.New(128, time.Minute)
	res := &resolver.Resolver{
		DB:       database,
		Cache:    linkCache,
		Enricher: &analytics.Enricher{Geo: g},
	}

	linkHandler := &LinkHandler{DB: database, Cfg: cfg, Cache: linkCache}
	statsHandler := &StatsHandler{DB: database}
	redirectHandler := &RedirectHandler{DB: database, Resolver: res}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.APIKey))
		r.Post("/links", linkHandler.Create)
		r.Get("/links", linkHandler.List)
		r.Get("/links/{id}", linkHandler.Get)
		r.Patch("/links/{id}", linkHandler.Update)
		r.Delete("/links/{id}", linkHandler.Delete)
		r.Get("/links/{id}/stats", statsHandler.LinkSummary)
		r.Get("/stats", statsHandler.Global)
	})
	r.NotFound(redirectHandler.ServeHTTP)
	return r, database, linkCache
}

func apiRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-API-Key", testAPIKey)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func createLink(t *testing.T, r chi.Router, body map[string]any) models.Link {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, apiRequest("POST", "/api/links", body))
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	var link models.Link
	if err := json.Unmarshal(w.Body.Bytes(), &link); err != nil {
		t.Fatal(err)
	}
	return link
}

func TestAuthRequired(t *testing.T) {
	r, _, _ := testRouter(t)

	req := httptest.NewRequest("GET", "/api/links", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/links", nil)
	req.Header.Set("X-API-Key", "wrong")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong key status = %d, want 401", w.Code)
	}
}

func TestCreateLink(t *testing.T) {
	r, _, _ := testRouter(t)
	link := createLink(t, r, map[string]any{"original_url": "https://example.com/docs"})

	if link.ID <= 0 {
		t.Errorf("ID = %d", link.ID)
	}
	if len(link.ShortCode) != 7 {
		t.Errorf("ShortCode = %q, want 7 chars", link.ShortCode)
	}
	if link.OriginalURL != "https://example.com/docs" {
		t.Errorf("OriginalURL = %q", link.OriginalURL)
	}
}

func TestCreateLink_RejectsBadDestination(t *testing.T) {
	r, _, _ := testRouter(t)
	for _, raw := range []string{"", "not a url", "ftp://example.com/x", "/relative"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, apiRequest("POST", "/api/links", map[string]any{"original_url": raw}))
		if w.Code != http.StatusBadRequest {
			t.Errorf("original_url=%q status = %d, want 400", raw, w.Code)
		}
	}
}

func TestCreateLink_DuplicateAliasConflicts(t *testing.T) {
	r, _, _ := testRouter(t)
	createLink(t, r, map[string]any{"original_url": "https://a.com", "custom_alias": "launch"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, apiRequest("POST", "/api/links", map[string]any{"original_url": "https://b.com", "custom_alias": "launch"}))
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestCreateLink_InvalidAlias(t *testing.T) {
	r, _, _ := testRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, apiRequest("POST", "/api/links", map[string]any{"original_url": "https://a.com", "custom_alias": "has spaces!"}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListLinks(t *testing.T) {
	r, _, _ := testRouter(t)
	for i := 0; i < 3; i++ {
		createLink(t, r, map[string]any{"original_url": fmt.Sprintf("https://example.com/p%d", i)})
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, apiRequest("GET", "/api/links?limit=2", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp listResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 3 || len(resp.Links) != 2 {
		t.Errorf("total=%d len=%d, want 3/2", resp.Total, len(resp.Links))
	}
}

func TestGetUpdateDeleteLink(t *testing.T) {
	r, d, _ := testRouter(t)
	link := createLink(t, r, map[string]any{"original_url": "https://example.com/old"})
	path := fmt.Sprintf("/api/links/%d", link.ID)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, apiRequest("GET", path, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, apiRequest("PATCH", path, map[string]any{"original_url": "https://example.com/new", "is_active": false}))
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", w.Code, w.Body.String())
	}
	fresh := &models.Link{ID: link.ID}
	if err := models.GetLinkByID(d, fresh); err != nil {
		t.Fatal(err)
	}
	if fresh.OriginalURL != "https://example.com/new" || fresh.IsActive {
		t.Errorf("update not persisted: %+v", fresh)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, apiRequest("DELETE", path, nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, apiRequest("GET", path, nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
}

func TestUpdate_InvalidatesCachedLink(t *testing.T) {
	r, _, lc := testRouter(t)
	link := createLink(t, r, map[string]any{"original_url": "https://example.com/x"})

	// Warm the cache through the redirect path.
	req := httptest.NewRequest("GET", "/"+link.ShortCode, nil)
	req.Header.Set("User-Agent", uaDesktop)
	req.RemoteAddr = "203.0.113.1:55000"
	r.ServeHTTP(httptest.NewRecorder(), req)
	if _, hit := lc.Get(link.ShortCode); !hit {
		t.Fatal("redirect did not cache the link")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, apiRequest("PATCH", fmt.Sprintf("/api/links/%d", link.ID), map[string]any{"is_active": false}))
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d", w.Code)
	}
	if _, hit := lc.Get(link.ShortCode); hit {
		t.Error("edited link still cached after the write landed")
	}

	// The next visit sees the edit, not the cached row.
	req = httptest.NewRequest("GET", "/"+link.ShortCode, nil)
	req.Header.Set("User-Agent", uaDesktop)
	req.RemoteAddr = "203.0.113.2:55000"
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status after deactivation = %d, want 404", w.Code)
	}
}

func TestDelete_InvalidatesCachedLink(t *testing.T) {
	r, _, lc := testRouter(t)
	link := createLink(t, r, map[string]any{"original_url": "https://example.com/x", "custom_alias": "gone"})

	req := httptest.NewRequest("GET", "/gone", nil)
	req.Header.Set("User-Agent", uaDesktop)
	req.RemoteAddr = "203.0.113.1:55000"
	r.ServeHTTP(httptest.NewRecorder(), req)
	if _, hit := lc.Get("gone"); !hit {
		t.Fatal("redirect did not cache the link")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, apiRequest("DELETE", fmt.Sprintf("/api/links/%d", link.ID), nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if _, hit := lc.Get("gone"); hit {
		t.Error("deleted link still cached")
	}
	if _, hit := lc.Get(link.ShortCode); hit {
		t.Error("deleted link still cached under its short code")
	}
}

func TestRedirect(t *testing.T) {
	r, _, _ := testRouter(t)
	link := createLink(t, r, map[string]any{"original_url": "https://example.com/target"})

	req := httptest.NewRequest("GET", "/"+link.ShortCode, nil)
	req.Header.Set("User-Agent", uaDesktop)
	req.RemoteAddr = "203.0.113.1:55000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "https://example.com/target" {
		t.Errorf("Location = %q", loc)
	}
}

func TestRedirect_GateStatusCodes(t *testing.T) {
	r, _, _ := testRouter(t)
	future := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	past := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)

	scheduled := createLink(t, r, map[string]any{"original_url": "https://a.com", "start_at": future})
	expired := createLink(t, r, map[string]any{"original_url": "https://b.com", "expires_at": past})
	locked := createLink(t, r, map[string]any{"original_url": "https://c.com", "password": "hunter2"})

	tests := []struct {
		code string
		want int
	}{
		{"nope999", http.StatusNotFound},
		{scheduled.ShortCode, http.StatusForbidden},
		{expired.ShortCode, http.StatusGone},
		{locked.ShortCode, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/"+tt.code, nil)
		req.Header.Set("User-Agent", uaDesktop)
		req.RemoteAddr = "203.0.113.1:55000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("GET /%s status = %d, want %d", tt.code, w.Code, tt.want)
		}
	}
}

func TestRedirect_PasswordUnlocks(t *testing.T) {
	r, _, _ := testRouter(t)
	link := createLink(t, r, map[string]any{"original_url": "https://example.com/secret", "password": "hunter2"})

	req := httptest.NewRequest("GET", "/"+link.ShortCode+"?password=hunter2", nil)
	req.Header.Set("User-Agent", uaDesktop)
	req.RemoteAddr = "203.0.113.1:55000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302, body %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest("GET", "/"+link.ShortCode+"?password=wrong", nil)
	req.Header.Set("User-Agent", uaDesktop)
	req.RemoteAddr = "203.0.113.1:55000"
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", w.Code)
	}
}

func TestRedirect_ExhaustedQuota(t *testing.T) {
	r, _, _ := testRouter(t)
	link := createLink(t, r, map[string]any{"original_url": "https://example.com/x", "max_clicks": 1})

	for i, want := range []int{http.StatusFound, http.StatusGone} {
		req := httptest.NewRequest("GET", "/"+link.ShortCode, nil)
		req.Header.Set("User-Agent", uaDesktop)
		req.RemoteAddr = fmt.Sprintf("203.0.113.%d:55000", i+1)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("visit %d status = %d, want %d", i, w.Code, want)
		}
	}
}

func TestRedirect_PixelInterstitial(t *testing.T) {
	r, _, _ := testRouter(t)
	link := createLink(t, r, map[string]any{
		"original_url": "https://example.com/x",
		"pixel_script": `<img src="https://t.example/p.gif">`,
	})

	req := httptest.NewRequest("GET", "/"+link.ShortCode, nil)
	req.Header.Set("User-Agent", uaDesktop)
	req.RemoteAddr = "203.0.113.1:55000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 interstitial", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "t.example/p.gif") {
		t.Error("pixel snippet missing from interstitial")
	}
	if !strings.Contains(body, "1200") {
		t.Error("delay missing from interstitial")
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestLinkStats(t *testing.T) {
	r, _, _ := testRouter(t)
	link := createLink(t, r, map[string]any{"original_url": "https://example.com/x"})

	req := httptest.NewRequest("GET", "/"+link.ShortCode, nil)
	req.Header.Set("User-Agent", uaDesktop)
	req.RemoteAddr = "203.0.113.1:55000"
	r.ServeHTTP(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, apiRequest("GET", fmt.Sprintf("/api/links/%d/stats?window=7d", link.ID), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var summary analytics.LinkSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.TotalClicks != 1 || summary.UniqueClicks != 1 {
		t.Errorf("totals = %d/%d, want 1/1", summary.TotalClicks, summary.UniqueClicks)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, apiRequest("GET", fmt.Sprintf("/api/links/%d/stats?window=90d", link.ID), nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad window status = %d, want 400", w.Code)
	}
}

func TestGlobalStats(t *testing.T) {
	r, _, _ := testRouter(t)
	createLink(t, r, map[string]any{"original_url": "https://example.com/x"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, apiRequest("GET", "/api/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats analytics.GlobalStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalLinks != 1 {
		t.Errorf("TotalLinks = %d, want 1", stats.TotalLinks)
	}
}
