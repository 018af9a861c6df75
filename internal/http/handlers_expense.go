package http

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"

	"cassa/internal/core"
	"cassa/internal/export"
	"cassa/internal/log"
	"cassa/internal/services"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q, err := s.listQuery(r)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	status, ok := expenseStatus(w, r)
	if !ok {
		return
	}

	page, err := s.expenses.ListExpenses(r.Context(), identity(r), q, status)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	SuccessWithMeta(w, http.StatusOK, "", mapSlice(page.Items, s.toExpenseResponse), metaOf(page))
}

func expenseStatus(w http.ResponseWriter, r *http.Request) (core.ExpenseStatus, bool) {
	status := core.ExpenseStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		Error(w, http.StatusBadRequest, "Invalid status", map[string]string{"status": "status must be one of: pending approved rejected"})
		return "", false
	}
	return status, true
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req ExpenseRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	e, err := s.expenses.CreateExpense(r.Context(), identity(r), req.toExpense(0))
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	Success(w, http.StatusCreated, "Expense created", s.toExpenseResponse(e))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ExpenseRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	e, err := s.expenses.UpdateExpense(r.Context(), identity(r), req.toExpense(id))
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	Success(w, http.StatusOK, "Expense updated", s.toExpenseResponse(e))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.expenses.DeleteExpense(r.Context(), identity(r), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	Success(w, http.StatusOK, "Expense deleted", nil)
}

// handleExportExpenses streams the filtered list, unpaginated, as CSV or
// XLSX.
func (s *Server) handleExportExpenses(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	q, err := s.listQuery(r)
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	status, ok := expenseStatus(w, r)
	if !ok {
		return
	}

	items, err := s.expenses.ExportExpenses(r.Context(), identity(r), q, status)
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	names, err := s.nameIndex(r.Context())
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.Filename()+`"`)
	if err := export.Write(w, format, export.Rows(items, names, s.invoiceBaseURL)); err != nil {
		// headers are gone by now, only log
		log.LogError(r.Context(), "Export failed", err, log.OpExport, nil)
	}
}

func (s *Server) nameIndex(ctx context.Context) (services.NameIndex, error) {
	var (
		categories []core.Category
		vendors    []core.Vendor
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		categories, err = s.categories.ListCategories(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		vendors, err = s.vendors.ListVendors(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return services.NameIndex{}, err
	}
	return services.NewNameIndex(nil, categories, vendors), nil
}

func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	q, err := s.listQuery(r)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	page, err := s.expenses.ListPending(r.Context(), identity(r), q)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	SuccessWithMeta(w, http.StatusOK, "", mapSlice(page.Items, s.toExpenseResponse), metaOf(page))
}

func (s *Server) handleCountApprovals(w http.ResponseWriter, r *http.Request) {
	n, err := s.expenses.CountPending(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	Success(w, http.StatusOK, "", PendingCountResponse{Pending: n})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	e, err := s.expenses.ApproveExpense(r.Context(), identity(r), id)
	if err != nil {
		writeError(w, r, log.OpApprove, err)
		return
	}
	Success(w, http.StatusOK, "Expense approved", s.toExpenseResponse(e))
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req RejectRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	e, err := s.expenses.RejectExpense(r.Context(), identity(r), id, sanitizeInput(req.Reason))
	if err != nil {
		writeError(w, r, log.OpReject, err)
		return
	}
	Success(w, http.StatusOK, "Expense rejected", s.toExpenseResponse(e))
}
