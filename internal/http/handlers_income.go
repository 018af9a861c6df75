package http

import (
	"net/http"
	"strconv"

	"cassa/internal/log"
)

func (s *Server) handleListIncome(w http.ResponseWriter, r *http.Request) {
	q, err := s.listQuery(r)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	userID, err := optionalID(r.URL.Query().Get("user_id"), "user_id")
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	page, err := s.incomes.ListIncomes(r.Context(), identity(r), q, userID)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	SuccessWithMeta(w, http.StatusOK, "", mapSlice(page.Items, toIncomeResponse), metaOf(page))
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	var req IncomeRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	i, err := s.incomes.CreateIncome(r.Context(), identity(r), req.toIncome())
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	Success(w, http.StatusCreated, "Income recorded", toIncomeResponse(i))
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.incomes.DeleteIncome(r.Context(), identity(r), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	Success(w, http.StatusOK, "Income deleted", nil)
}

// handleWallet serves both the caller's wallet and, for admins, another
// user's at /api/wallet/{userID}.
func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	var userID int64
	if raw := r.PathValue("userID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			Error(w, http.StatusBadRequest, "Invalid userID", nil)
			return
		}
		userID = id
	}
	d, err := s.descriptorFor(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}

	wallet, err := s.wallets.Wallet(r.Context(), identity(r), userID, d)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	Success(w, http.StatusOK, "", toWalletResponse(wallet))
}
