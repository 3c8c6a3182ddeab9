package http

import (
	"log/slog"
	"net/http"
	"regexp"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
)

// summary is the report payload for a user and month.
type summary struct {
	Month         string                `json:"month"`
	Totals        core.Totals           `json:"totals"`
	MonthlyTotals core.Totals           `json:"monthly_totals"`
	TopCategories []core.CategoryAmount `json:"top_categories"`
	BalanceSeries []core.BalancePoint   `json:"balance_series"`
}

const topCategoryCount = 5

var monthRe = regexp.MustCompile(`^\d{4}-\d{2}$`)

func (s *Server) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	month := r.URL.Query().Get("month")
	if month == "" {
		month = core.CurrentMonth()
	} else if !monthRe.MatchString(month) {
		writeError(w, http.StatusBadRequest, "Valid month is required (YYYY-MM)")
		return
	}

	key := s.summaryKey(user.ID, month)
	if cached, hit := s.summaryCache.Get(key); hit {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	// Income and expenses are independent reads, fetch them concurrently.
	var (
		incomes  []core.Income
		expenses []core.Expense
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		incomes, err = s.records.GetIncomes(ctx, user.ID)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = s.records.GetExpenses(ctx, user.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		slog.ErrorContext(r.Context(), "Report fetch failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	breakdown := core.CategoryBreakdown(expenses, month)
	result := summary{
		Month:         month,
		Totals:        core.ComputeTotals(incomes, expenses),
		MonthlyTotals: core.MonthlyTotals(incomes, expenses, month),
		TopCategories: core.TopCategories(breakdown, topCategoryCount),
		BalanceSeries: core.BalanceSeries(incomes, expenses),
	}
	if result.TopCategories == nil {
		result.TopCategories = []core.CategoryAmount{}
	}
	if result.BalanceSeries == nil {
		result.BalanceSeries = []core.BalancePoint{}
	}

	s.summaryCache.Set(key, result)
	writeJSON(w, http.StatusOK, result)
}
