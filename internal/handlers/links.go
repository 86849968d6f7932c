package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trimrr/trimr/internal/cache"
	"github.com/trimrr/trimr/internal/config"
	"github.com/trimrr/trimr/internal/metrics"
	"github.com/trimrr/trimr/internal/models"
	"github.com/trimrr/trimr/internal/slug"
)

type LinkHandler struct {
	DB    *sql.DB
	Cfg   *config.Config
	Cache *cache.LinkCache
}

type createLinkRequest struct {
	OriginalURL string           `json:"original_url"`
	CustomAlias string           `json:"custom_alias"`
	UTM         models.UTMParams `json:"utm"`
	StartAt     string           `json:"start_at"`
	ExpiresAt   string           `json:"expires_at"`
	Password    string           `json:"password"`
	MaxClicks   *int64           `json:"max_clicks"`
	PixelScript string           `json:"pixel_script"`
}

type updateLinkRequest struct {
	OriginalURL *string           `json:"original_url"`
	UTM         *models.UTMParams `json:"utm"`
	IsActive    *bool             `json:"is_active"`
	StartAt     *string           `json:"start_at"`
	ExpiresAt   *string           `json:"expires_at"`
	Password    *string           `json:"password"`
	MaxClicks   *int64            `json:"max_clicks"`
	PixelScript *string           `json:"pixel_script"`
}

type listResponse struct {
	Links  []models.Link `json:"links"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

func (h *LinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if !validDestination(req.OriginalURL) {
		jsonError(w, "original_url must be an absolute http(s) URL", http.StatusBadRequest)
		return
	}

	startAt, err := parseInstant(req.StartAt)
	if err != nil {
		jsonError(w, "start_at: "+err.Error(), http.StatusBadRequest)
		return
	}
	expiresAt, err := parseInstant(req.ExpiresAt)
	if err != nil {
		jsonError(w, "expires_at: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.MaxClicks != nil && *req.MaxClicks <= 0 {
		jsonError(w, "max_clicks must be positive", http.StatusBadRequest)
		return
	}

	// The alias (if requested) and the generated code live in one
	// uniqueness namespace; both are validated here and re-enforced
	// atomically by the insert.
	if req.CustomAlias != "" {
		if _, err := slug.Allocate(h.DB, req.CustomAlias); err != nil {
			switch {
			case errors.Is(err, models.ErrAliasTaken):
				jsonError(w, "alias already taken", http.StatusConflict)
			case errors.Is(err, slug.ErrInvalidAlias):
				jsonError(w, "invalid custom alias", http.StatusBadRequest)
			default:
				jsonError(w, "internal error", http.StatusInternalServerError)
			}
			return
		}
	}
	code, err := slug.Allocate(h.DB, "")
	if err != nil {
		if errors.Is(err, slug.ErrAllocationExhausted) {
			jsonError(w, "could not allocate a short code", http.StatusServiceUnavailable)
			return
		}
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	link := &models.Link{
		ShortCode:   code,
		CustomAlias: req.CustomAlias,
		OriginalURL: req.OriginalURL,
		Owner:       AccountFrom(r.Context()),
		UTM:         req.UTM,
		StartAt:     startAt,
		ExpiresAt:   expiresAt,
		MaxClicks:   req.MaxClicks,
		PixelScript: req.PixelScript,
	}
	if req.Password != "" {
		link.IsLocked = true
		link.PasswordHash = models.HashPassword(req.Password)
	}

	if err := models.CreateLink(h.DB, link); err != nil {
		if errors.Is(err, models.ErrAliasTaken) {
			jsonError(w, "alias already taken", http.StatusConflict)
			return
		}
		jsonError(w, "failed to create link", http.StatusInternalServerError)
		return
	}
	metrics.LinksCreatedTotal.Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(link)
}

func (h *LinkHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 25
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	search := r.URL.Query().Get("search")

	links, total, err := models.ListLinks(h.DB, limit, offset, search)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if links == nil {
		links = []models.Link{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listResponse{
		Links:  links,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *LinkHandler) Get(w http.ResponseWriter, r *http.Request) {
	link, ok := h.loadLink(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(link)
}

func (h *LinkHandler) Update(w http.ResponseWriter, r *http.Request) {
	link, ok := h.loadLink(w, r)
	if !ok {
		return
	}

	var req updateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if req.OriginalURL != nil {
		if !validDestination(*req.OriginalURL) {
			jsonError(w, "original_url must be an absolute http(s) URL", http.StatusBadRequest)
			return
		}
		link.OriginalURL = *req.OriginalURL
	}
	if req.UTM != nil {
		link.UTM = *req.UTM
	}
	if req.IsActive != nil {
		link.IsActive = *req.IsActive
	}
	if req.StartAt != nil {
		t, err := parseInstant(*req.StartAt)
		if err != nil {
			jsonError(w, "start_at: "+err.Error(), http.StatusBadRequest)
			return
		}
		link.StartAt = t
	}
	if req.ExpiresAt != nil {
		t, err := parseInstant(*req.ExpiresAt)
		if err != nil {
			jsonError(w, "expires_at: "+err.Error(), http.StatusBadRequest)
			return
		}
		link.ExpiresAt = t
	}
	if req.Password != nil {
		if *req.Password == "" {
			link.IsLocked = false
			link.PasswordHash = ""
		} else {
			link.IsLocked = true
			link.PasswordHash = models.HashPassword(*req.Password)
		}
	}
	if req.MaxClicks != nil {
		if *req.MaxClicks <= 0 {
			link.MaxClicks = nil
		} else {
			link.MaxClicks = req.MaxClicks
		}
	}
	if req.PixelScript != nil {
		link.PixelScript = *req.PixelScript
	}

	if err := models.UpdateLink(h.DB, link); err != nil {
		jsonError(w, "failed to update link", http.StatusInternalServerError)
		return
	}

	// Drop the cached entry only after the write lands; a racing resolve
	// that re-caches mid-update would otherwise pin the old row for a TTL.
	h.Cache.Invalidate(link)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(link)
}

func (h *LinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	link, ok := h.loadLink(w, r)
	if !ok {
		return
	}

	if err := models.DeleteLink(h.DB, link.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			jsonError(w, "not found", http.StatusNotFound)
			return
		}
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.Cache.Invalidate(link)

	w.WriteHeader(http.StatusNoContent)
}

func (h *LinkHandler) loadLink(w http.ResponseWriter, r *http.Request) (*models.Link, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid id", http.StatusBadRequest)
		return nil, false
	}

	link := &models.Link{ID: id}
	if err := models.GetLinkByID(h.DB, link); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			jsonError(w, "not found", http.StatusNotFound)
			return nil, false
		}
		jsonError(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	return link, true
}

func validDestination(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// parseInstant accepts an RFC 3339 timestamp; the empty string means unset.
func parseInstant(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
