package middleware

import (
	"crypto/subtle"
	"net/http"
)

// IngestTokenHeader carries the secret shared with the mail ingestion server.
const IngestTokenHeader = "X-Ingest-Token"

// IngestToken only lets requests through that present token. An empty token
// rejects everything.
func IngestToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(IngestTokenHeader)
			if token == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				http.Error(w, "Invalid ingest token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
