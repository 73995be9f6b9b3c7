package httpapi

import "net/http"

// appTokenAuth rejects any request whose X-App-Token header does not match
// the configured APP_TOKEN with a 403. An empty AppToken disables the
// check, which test setups rely on.
func (a *api) appTokenAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.deps.AppToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("X-App-Token") != a.deps.AppToken {
			writeJSON(w, http.StatusForbidden, baseResponse{Success: false, Message: "invalid or missing app token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
