package handlers

import (
	"database/sql"
	"html/template"
	"net"
	"net/http"
	"strings"

	"github.com/trimrr/trimr/internal/models"
	"github.com/trimrr/trimr/internal/resolver"
)

type RedirectHandler struct {
	DB       *sql.DB
	Resolver *resolver.Resolver
}

// Interstitial served when a link carries a tracking snippet: the snippet
// runs immediately, navigation happens after the pixel delay.
var pixelPage = template.Must(template.New("pixel").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Redirecting…</title></head>
<body>
{{.Pixel}}
<noscript><meta http-equiv="refresh" content="2;url={{.Target}}"></noscript>
<script>setTimeout(function(){window.location.replace({{.Target}});}, {{.DelayMS}});</script>
</body>
</html>
`))

func (h *RedirectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code := strings.Trim(r.URL.Path, "/")
	if code == "" || strings.Contains(code, "/") {
		http.NotFound(w, r)
		return
	}

	// chi's RealIP middleware already sets RemoteAddr from X-Forwarded-For/X-Real-IP
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	if ip == "" {
		ip = r.RemoteAddr
	}

	v := resolver.Visit{
		IP:        ip,
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
	}

	// Unlock glue for password-gated links: a credential supplied with the
	// request is verified against the stored hash before gating. The
	// resolver itself only sees the resulting boolean.
	if pw := r.FormValue("password"); pw != "" {
		if link, err := models.GetLinkByCode(h.DB, code); err == nil {
			v.Unlocked = models.VerifyPassword(link.PasswordHash, pw)
		}
	}

	out, err := h.Resolver.Resolve(code, v)
	if err != nil {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	switch out.State {
	case resolver.StateRedirect:
		if out.Delay > 0 {
			h.servePixel(w, out)
			return
		}
		http.Redirect(w, r, out.Target, http.StatusFound)
	case resolver.StateNotFound:
		http.Error(w, out.Message, http.StatusNotFound)
	case resolver.StateScheduled:
		http.Error(w, out.Message, http.StatusForbidden)
	case resolver.StateExpired, resolver.StateExhausted:
		http.Error(w, out.Message, http.StatusGone)
	case resolver.StateLocked:
		http.Error(w, out.Message, http.StatusUnauthorized)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *RedirectHandler) servePixel(w http.ResponseWriter, out *resolver.Outcome) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	pixelPage.Execute(w, struct {
		Pixel   template.HTML
		Target  string
		DelayMS int64
	}{
		Pixel:   template.HTML(out.Pixel),
		Target:  out.Target,
		DelayMS: out.Delay.Milliseconds(),
	})
}
