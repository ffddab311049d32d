package chi

import (
	"net/http"
	"strings"
)

// exemptPaths bypass authentication so health probes and the metrics
// scraper work without credentials.
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// BearerAuthMiddleware validates Authorization: Bearer tokens against
// the configured API keys. With no keys configured the middleware is a
// no-op and every request passes.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys[k] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, exempt := exemptPaths[r.URL.Path]; exempt {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				writeError(w, http.StatusUnauthorized, codeBadRequest,
					"authorization requires a Bearer token")
				return
			}
			if _, valid := keys[token]; !valid {
				writeError(w, http.StatusUnauthorized, codeBadRequest, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
