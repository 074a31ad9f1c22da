package http

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	applog "invoicer/internal/log"
)

// requestLog prefers the request-scoped logger set by the trace middleware.
func (s *Server) requestLog(r *http.Request) *applog.StructuredLogger {
	return applog.NewStructuredLogger(applog.FromContextOr(r.Context(), s.logger))
}

// pathID returns the {id} route variable.
func pathID(r *http.Request) string {
	return strings.TrimSpace(mux.Vars(r)["id"])
}

// sanitizeInput removes control characters other than tab and line breaks
// and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// attachment marks a response as a file download.
func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
}
