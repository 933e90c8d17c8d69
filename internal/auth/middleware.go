package auth

import (
	"net/http"
)

// Middleware authenticates HTTP requests. The token comes from the
// Authorization header or, for websocket upgrades where browsers cannot set
// headers, from the "token" query parameter.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			if tok := r.URL.Query().Get("token"); tok != "" {
				header = "Bearer " + tok
			}
		}

		ctx, err := a.Authenticate(r.Context(), header)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
