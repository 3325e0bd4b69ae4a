package audit

import (
	"net/http"

	"github.com/rs/zerolog"
)

// Recorder wraps admin routers so every mutation leaves an audit row.
type Recorder struct {
	Svc Service
	Log zerolog.Logger
}

// Middleware records non-GET requests after the handler has run. Reads
// pass through untouched so list endpoints stay cheap.
func (rec Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rec.Svc.Enabled || r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		if err := rec.Svc.Record(r.Context(), "", "", "", r, sw.Status(), nil); err != nil {
			rec.Log.Warn().Err(err).Str("path", r.URL.Path).Msg("audit record failed")
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Status() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}
