package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// recordPayload is the client-supplied body for record creation and update.
// Owner, id and creation timestamp are never read from the body.
type recordPayload struct {
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description *string         `json:"description"`
	Date        string          `json:"date"`
}

func (p recordPayload) draft() core.RecordDraft {
	return core.RecordDraft{
		Amount:      p.Amount,
		Category:    p.Category,
		Description: p.Description,
		Date:        p.Date,
	}
}

// decodeDraft decodes and validates a record body in one step.
func decodeDraft(r *http.Request, kind core.RecordKind) (core.RecordDraft, error) {
	var payload recordPayload
	if err := decodeRecordPayload(r, &payload); err != nil {
		return core.RecordDraft{}, err
	}
	draft := payload.draft()
	if err := draft.Validate(kind); err != nil {
		return core.RecordDraft{}, err
	}
	return draft, nil
}

// writeRecordError maps service errors onto the API status codes.
func writeRecordError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "Record not found")
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrCategoryRequired),
		errors.Is(err, core.ErrInvalidDescription),
		errors.Is(err, errBadBody):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Record operation failed", "error", err, "url", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
