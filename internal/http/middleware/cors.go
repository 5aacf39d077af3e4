package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// Origins is the set of embedding sites allowed to open booking pages.
type Origins struct {
	any  bool
	list map[string]struct{}
}

// ParseOrigins builds the allow-list. "*" admits every origin.
func ParseOrigins(origins []string) Origins {
	o := Origins{list: map[string]struct{}{}}
	for _, origin := range origins {
		switch origin = strings.TrimSpace(origin); origin {
		case "":
		case "*":
			o.any = true
		default:
			o.list[strings.TrimRight(origin, "/")] = struct{}{}
		}
	}
	return o
}

// Listed reports whether origin is named explicitly.
func (o Origins) Listed(origin string) bool {
	_, ok := o.list[origin]
	return ok
}

// Allows reports whether origin may call the API.
func (o Origins) Allows(origin string) bool {
	return o.any || o.Listed(origin)
}

// CheckWidgetOrigin admits widget websockets from allowed origins, from the
// API's own host, and from clients that send no Origin.
func (o Origins) CheckWidgetOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || o.Allows(origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

const (
	corsAllowedHeaders = "Content-Type, X-Client-Timezone, X-Request-ID"
	corsAllowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsExposedHeaders = "Location, X-Request-Id"
)

// CORS lets embedding pages call the page API. Only explicitly listed origins
// may send the browsing-session cookie; a "*" entry admits other origins
// without credentials.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	origins := ParseOrigins(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin != "" && origins.Allows(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
				h.Set("Access-Control-Allow-Methods", corsAllowedMethods)
				h.Set("Access-Control-Expose-Headers", corsExposedHeaders)
				h.Set("Access-Control-Max-Age", "600")
				if origins.Listed(origin) {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
