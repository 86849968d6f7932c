package resolver

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trimrr/trimr/internal/analytics"
	"github.com/trimrr/trimr/internal/cache"
	"github.com/trimrr/trimr/internal/metrics"
	"github.com/trimrr/trimr/internal/models"
)

// PixelDelay is how long a redirect is held back when a link carries a
// tracking snippet, giving it time to fire before navigation.
const PixelDelay = 1200 * time.Millisecond

// admitAttempts bounds retries of the admission transaction on transient
// store failures. Gate outcomes are never retried.
const admitAttempts = 2

// ErrStoreUnavailable is surfaced when the link store cannot complete a
// lookup or an admission within bounded attempts. The caller must not
// redirect: an uncounted visit is a correctness failure, not a degradation.
var ErrStoreUnavailable = errors.New("link store unavailable")

type State int

const (
	StateRedirect State = iota
	StateNotFound
	StateScheduled
	StateExpired
	StateLocked
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateRedirect:
		return "redirect"
	case StateNotFound:
		return "not_found"
	case StateScheduled:
		return "scheduled"
	case StateExpired:
		return "expired"
	case StateLocked:
		return "locked"
	case StateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Message is the human-readable text for a terminal gate state.
func (s State) Message() string {
	switch s {
	case StateNotFound:
		return "link not found"
	case StateScheduled:
		return "this link is not live yet"
	case StateExpired:
		return "this link has expired"
	case StateLocked:
		return "password required"
	case StateExhausted:
		return "this link has reached its click limit"
	}
	return ""
}

// Visit carries the request context of a resolution attempt. Unlocked is
// set by the caller once the unlock collaborator has accepted a
// credential; the resolver itself only gates on the boolean.
type Visit struct {
	IP        string
	UserAgent string
	Referer   string
	Unlocked  bool
	At        time.Time
}

// Outcome is the terminal result of a resolution attempt. Target is set
// only for StateRedirect; a non-zero Delay means the caller must hold the
// redirect back while Pixel executes client-side.
type Outcome struct {
	State   State
	Target  string
	Delay   time.Duration
	Pixel   string
	Message string
}

type Resolver struct {
	DB       *sql.DB
	Cache    *cache.LinkCache
	Enricher *analytics.Enricher
}

// Resolve runs the gate sequence for a short code. Gates are evaluated in
// a fixed order and the first match terminates without recording a click;
// only an admitted visit moves counters and reaches the click log. Safe
// under concurrent calls for the same code: the quota boundary is decided
// by the store's conditional increment, not by the snapshot read here.
func (r *Resolver) Resolve(code string, v Visit) (*Outcome, error) {
	if v.At.IsZero() {
		v.At = time.Now().UTC()
	}

	link, hit := r.Cache.Get(code)
	if hit {
		metrics.CacheHitsTotal.Inc()
	} else {
		metrics.CacheMissesTotal.Inc()
		var err error
		link, err = models.GetLinkByCode(r.DB, code)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return gate(StateNotFound), nil
			}
			metrics.ResolutionsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("lookup %q: %v: %w", code, err, ErrStoreUnavailable)
		}
		r.Cache.Set(code, link)
	}

	// Gate order is fixed. Time-based gates run against the live clock
	// even for cached links, so a stale cache entry can never carry a
	// visitor past an expiry or schedule boundary.
	switch {
	case !link.IsActive:
		return gate(StateNotFound), nil
	case link.StartAt != nil && v.At.Before(*link.StartAt):
		return gate(StateScheduled), nil
	case link.ExpiresAt != nil && !v.At.Before(*link.ExpiresAt):
		return gate(StateExpired), nil
	case link.IsLocked && !v.Unlocked:
		return gate(StateLocked), nil
	case link.MaxClicks != nil && link.ClickCount >= *link.MaxClicks:
		return gate(StateExhausted), nil
	}

	click := r.Enricher.Enrich(link.ID, v.At, v.IP, v.UserAgent, v.Referer)
	admitted, err := r.admit(&click)
	if err != nil {
		metrics.ResolutionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if !admitted {
		return r.refused(code, v.At)
	}
	metrics.ClicksAdmittedTotal.Inc()
	metrics.ResolutionsTotal.WithLabelValues(StateRedirect.String()).Inc()

	out := &Outcome{State: StateRedirect, Target: link.DestinationURL()}
	if link.PixelScript != "" {
		out.Delay = PixelDelay
		out.Pixel = link.PixelScript
	}
	return out, nil
}

func (r *Resolver) admit(c *models.Click) (bool, error) {
	var lastErr error
	for range admitAttempts {
		admitted, err := models.AdmitClick(r.DB, c)
		if err == nil {
			return admitted, nil
		}
		lastErr = err
	}
	return false, fmt.Errorf("admit click: %v: %w", lastErr, ErrStoreUnavailable)
}

// refused names the terminal state after the conditional increment
// declined a visit: the snapshot passed the gates but the store said no,
// which means the quota filled (or the row vanished) underneath us.
func (r *Resolver) refused(code string, at time.Time) (*Outcome, error) {
	r.Cache.InvalidateCode(code)

	fresh, err := models.GetLinkByCode(r.DB, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return gate(StateNotFound), nil
		}
		metrics.ResolutionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("re-read %q: %v: %w", code, err, ErrStoreUnavailable)
	}
	if fresh.ExpiresAt != nil && !at.Before(*fresh.ExpiresAt) {
		return gate(StateExpired), nil
	}
	return gate(StateExhausted), nil
}

func gate(s State) *Outcome {
	metrics.ResolutionsTotal.WithLabelValues(s.String()).Inc()
	return &Outcome{State: s, Message: s.Message()}
}
