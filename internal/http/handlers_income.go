package http

import (
	"net/http"

	"fintrack/internal/core"
)

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	incomes, err := s.records.GetIncomes(r.Context(), user.ID)
	if err != nil {
		writeRecordError(w, r, err)
		return
	}
	if incomes == nil {
		incomes = []core.Income{}
	}
	writeJSON(w, http.StatusOK, incomes)
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	draft, err := decodeDraft(r, core.KindIncome)
	if err != nil {
		writeRecordError(w, r, err)
		return
	}

	income, err := s.records.CreateIncome(r.Context(), user.ID, draft)
	if err != nil {
		writeRecordError(w, r, err)
		return
	}
	s.bumpVersion(user.ID)
	writeJSON(w, http.StatusCreated, income)
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	draft, err := decodeDraft(r, core.KindIncome)
	if err != nil {
		writeRecordError(w, r, err)
		return
	}

	income, err := s.records.UpdateIncome(r.Context(), user.ID, r.PathValue("id"), draft)
	if err != nil {
		writeRecordError(w, r, err)
		return
	}
	s.bumpVersion(user.ID)
	writeJSON(w, http.StatusOK, income)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := s.records.DeleteIncome(r.Context(), user.ID, r.PathValue("id")); err != nil {
		writeRecordError(w, r, err)
		return
	}
	s.bumpVersion(user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Income deleted successfully"})
}
