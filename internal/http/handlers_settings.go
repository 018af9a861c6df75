package http

import (
	"net/http"
	"strings"

	"cassa/internal/core"
	"cassa/internal/log"
)

// handleListCategories lists categories, optionally narrowed by kind and
// ranked by a fuzzy name search q.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	kind := core.CategoryKind(strings.TrimSpace(r.URL.Query().Get("kind")))
	categories, err := s.categories.SearchCategories(r.Context(), r.URL.Query().Get("q"), kind)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	Success(w, http.StatusOK, "", mapSlice(categories, toCategoryResponse))
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	c, err := s.categories.CreateCategory(r.Context(), identity(r), req.toCategory(0))
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	Success(w, http.StatusCreated, "Category created", toCategoryResponse(c))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req CategoryRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	c, err := s.categories.UpdateCategory(r.Context(), identity(r), req.toCategory(id))
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	Success(w, http.StatusOK, "Category updated", toCategoryResponse(c))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.categories.DeleteCategory(r.Context(), identity(r), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	Success(w, http.StatusOK, "Category deleted", nil)
}

func (s *Server) handleListVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := s.vendors.ListVendors(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	Success(w, http.StatusOK, "", mapSlice(vendors, toVendorResponse))
}

func (s *Server) handleCreateVendor(w http.ResponseWriter, r *http.Request) {
	var req VendorRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	v, err := s.vendors.CreateVendor(r.Context(), identity(r), core.Vendor{Name: sanitizeInput(req.Name)})
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	Success(w, http.StatusCreated, "Vendor created", toVendorResponse(v))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.ListUsers(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	Success(w, http.StatusOK, "", mapSlice(users, toUserResponse))
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	u := core.User{
		Name:  sanitizeInput(req.Name),
		Email: strings.TrimSpace(req.Email),
		Role:  core.Role(req.Role),
	}
	created, err := s.users.CreateUser(r.Context(), identity(r), u, req.Password)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	Success(w, http.StatusCreated, "User created", toUserResponse(created))
}
