package middleware

import (
	"io"
	"net/http"
)

// DrainAndCloseRequest drains whatever body a handler left unread so the connection can be reused.
func DrainAndCloseRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if r.Body == nil || r.Body == http.NoBody {
				return
			}
			_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, maxDrainBytes))
			_ = r.Body.Close()
		})
	}
}

// pages only take GETs, anything larger is not worth reading
const maxDrainBytes = 256 << 10
