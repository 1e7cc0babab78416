package server

import (
	"net/http"
	"time"

	"github.com/ButyrinIA/postadmin/internal/logger"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// requestLogger logs information about each request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logger.Log.WithFields(logger.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      status,
			"duration":    time.Since(start),
			"request_id":  chimw.GetReqID(r.Context()),
			"remote_addr": r.RemoteAddr,
		}).Info("Request processed")
	})
}
