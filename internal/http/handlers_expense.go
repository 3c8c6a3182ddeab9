package http

import (
	"net/http"

	"fintrack/internal/core"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	expenses, err := s.records.GetExpenses(r.Context(), user.ID)
	if err != nil {
		writeRecordError(w, r, err)
		return
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	draft, err := decodeDraft(r, core.KindExpense)
	if err != nil {
		writeRecordError(w, r, err)
		return
	}

	expense, err := s.records.CreateExpense(r.Context(), user.ID, draft)
	if err != nil {
		writeRecordError(w, r, err)
		return
	}
	s.bumpVersion(user.ID)
	writeJSON(w, http.StatusCreated, expense)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	draft, err := decodeDraft(r, core.KindExpense)
	if err != nil {
		writeRecordError(w, r, err)
		return
	}

	expense, err := s.records.UpdateExpense(r.Context(), user.ID, r.PathValue("id"), draft)
	if err != nil {
		writeRecordError(w, r, err)
		return
	}
	s.bumpVersion(user.ID)
	writeJSON(w, http.StatusOK, expense)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := s.records.DeleteExpense(r.Context(), user.ID, r.PathValue("id")); err != nil {
		writeRecordError(w, r, err)
		return
	}
	s.bumpVersion(user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Expense deleted successfully"})
}
