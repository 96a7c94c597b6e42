package httpapi

import (
	"fmt"
	"net/http"
	"strings"
)

// WrapWithAuth guards the API with a static bearer token set. An empty set
// disables authentication, which is only sensible for local development.
func WrapWithAuth(next http.Handler, tokens []string) http.Handler {
	allowed := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t != "" {
			allowed[t] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("missing bearer token"))
			return
		}
		if _, valid := allowed[strings.TrimSpace(token)]; !valid {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("invalid bearer token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
