package middleware

import (
	"net/http"
	"net/url"
	"os"
	"strings"
)

// allowedOrigins reads the WEB_ALLOWED_ORIGINS env var (comma-separated)
// into a set. Localhost origins are handled separately and need no entry.
func allowedOrigins() map[string]struct{} {
	origins := make(map[string]struct{})
	for _, o := range strings.Split(os.Getenv("WEB_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = struct{}{}
		}
	}
	return origins
}

// isLocalOrigin reports whether the origin's host is the local machine,
// on any port. Kiosk and development setups run the UI next to the
// server, so these are always allowed.
func isLocalOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// CORS returns middleware that answers cross-origin requests for the
// API. Only origins from WEB_ALLOWED_ORIGINS and local origins get the
// allow headers; preflight OPTIONS requests are answered directly.
func CORS() func(http.Handler) http.Handler {
	allowed := allowedOrigins()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			_, ok := allowed[origin]
			if origin != "" && (ok || isLocalOrigin(origin)) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Requested-With")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
