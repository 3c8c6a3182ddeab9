package core

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindIncome  RecordKind = "income"
	KindExpense RecordKind = "expense"
)

type (
	// RecordKind distinguishes the two record entities.
	RecordKind string

	// Income is a single income record owned by a user.
	Income struct {
		ID          string          `json:"id"`
		UserID      string          `json:"user_id"`
		Amount      decimal.Decimal `json:"amount"`
		Description *string         `json:"description"`
		Date        string          `json:"date"`
		CreatedAt   time.Time       `json:"created_at"`
	}

	// Expense is a single expense record owned by a user.
	Expense struct {
		ID          string          `json:"id"`
		UserID      string          `json:"user_id"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Description *string         `json:"description"`
		Date        string          `json:"date"`
		CreatedAt   time.Time       `json:"created_at"`
	}

	// RecordDraft carries the client-supplied fields of a record. ID, owner
	// and creation timestamp are assigned by the store and never accepted
	// from the client.
	RecordDraft struct {
		Amount      decimal.Decimal
		Category    string
		Description *string
		Date        string
	}
)

// Validation failures carry the exact reasons surfaced to API clients.
var (
	ErrInvalidAmount      = errors.New("Valid amount is required")
	ErrInvalidDate        = errors.New("Valid date is required (YYYY-MM-DD)")
	ErrCategoryRequired   = errors.New("Category is required")
	ErrInvalidDescription = errors.New("Description must be a string")
)

// ErrNotFound marks a record that is absent or owned by another user.
// Cross-user access is indistinguishable from a missing record.
var ErrNotFound = errors.New("record not found")

// DateLayout is the calendar-date wire format. It has no time component,
// so date strings sort chronologically as plain strings.
const DateLayout = "2006-01-02"

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidDate reports whether s is a real calendar date in YYYY-MM-DD form.
// The parsed date must round-trip to the identical string, which rejects
// shapes like 2024-02-30 that time.Parse would normalize.
func ValidDate(s string) bool {
	if !dateRe.MatchString(s) {
		return false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return false
	}
	return t.Format(DateLayout) == s
}

// Validate checks the draft against the write-time rules for the given
// kind. It is pure and returns the first violated rule.
func (d RecordDraft) Validate(kind RecordKind) error {
	if !d.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if kind == KindExpense && strings.TrimSpace(d.Category) == "" {
		return ErrCategoryRequired
	}
	if !ValidDate(d.Date) {
		return ErrInvalidDate
	}
	return nil
}
