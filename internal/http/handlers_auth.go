package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"cassa/internal/filter"
	"cassa/internal/log"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	u, err := s.users.Authenticate(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Login failed",
			"client_ip", s.detector.ClientIP(r),
			"error", err)
		writeError(w, r, "login", err)
		return
	}

	token, expires, err := s.tokens.Issue(u)
	if err != nil {
		writeError(w, r, "login", err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "User logged in", log.FieldUserID, u.ID, log.FieldRole, u.Role)
	Success(w, http.StatusOK, "Login successful", LoginResponse{
		Token:        token,
		ExpiresAt:    expires,
		User:         toUserResponse(u),
		Capabilities: s.capabilities.For(u.Role),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	u, err := s.users.GetUser(r.Context(), id.ID)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	Success(w, http.StatusOK, "", MeResponse{User: toUserResponse(u), Capabilities: s.capabilities.For(u.Role)})
}

func (s *Server) handleGetFilter(w http.ResponseWriter, r *http.Request) {
	Success(w, http.StatusOK, "", s.filters.Get(r, identity(r).ID))
}

// handlePutFilter replaces the session filter. Filter changes stay local to
// the session, so nothing is published.
func (s *Server) handlePutFilter(w http.ResponseWriter, r *http.Request) {
	d := filter.Descriptor{Location: s.location}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&d); err != nil {
		Error(w, http.StatusBadRequest, "Invalid filter", map[string]string{"filter": err.Error()})
		return
	}
	s.filters.Put(w, r, identity(r).ID, d)
	Success(w, http.StatusOK, "Filter saved", d)
}
