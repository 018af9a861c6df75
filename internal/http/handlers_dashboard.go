package http

import (
	"net/http"

	"cassa/internal/log"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	d, err := s.descriptorFor(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	summary, err := s.dashboard.Summary(r.Context(), identity(r), d)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	Success(w, http.StatusOK, "", toSummaryResponse(summary))
}
