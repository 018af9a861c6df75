package http

import (
	"net/http"
	"strings"

	"cassa/internal/auth"
	"cassa/internal/core"
	"cassa/internal/log"
)

var allRoles = []core.Role{core.RoleUser, core.RoleAdmin, core.RoleSuperAdmin}

// authenticate requires a valid bearer token and stores the identity in
// the request context.
func (s *Server) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			Unauthorized(w, "Authorization header is required")
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			Unauthorized(w, "Invalid authorization header format")
			return
		}

		id, err := s.tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			Unauthorized(w, "Invalid or expired token")
			return
		}

		ctx := auth.WithIdentity(r.Context(), id)
		logger := log.FromContext(ctx).With(log.FieldUserID, id.ID, log.FieldRole, id.Role)
		ctx = log.IntoContext(ctx, logger)
		next(w, r.WithContext(ctx))
	}
}

// require gates next behind capability. The roles holding it are resolved
// once, when the route is mounted.
func (s *Server) require(capability auth.Capability, next http.HandlerFunc) http.HandlerFunc {
	allowed := make(map[core.Role]bool, len(allRoles))
	for _, role := range allRoles {
		if s.capabilities.Allows(role, capability) {
			allowed[role] = true
		}
	}

	return s.authenticate(func(w http.ResponseWriter, r *http.Request) {
		if !allowed[identity(r).Role] {
			Forbidden(w, "You don't have permission to access this resource")
			return
		}
		next(w, r)
	})
}
