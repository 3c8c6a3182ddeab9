package core

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// Totals sums each record list; Balance is always Income minus Expenses.
	Totals struct {
		Income   decimal.Decimal `json:"total_income"`
		Expenses decimal.Decimal `json:"total_expenses"`
		Balance  decimal.Decimal `json:"balance"`
	}

	// CategoryAmount is an expense sum aggregated by category.
	CategoryAmount struct {
		Category string          `json:"category"`
		Amount   decimal.Decimal `json:"amount"`
	}

	// BalancePoint is one entry of the balance time series: the sums for a
	// single date plus the cumulative balance through that date inclusive.
	BalancePoint struct {
		Date     string          `json:"date"`
		Income   decimal.Decimal `json:"income"`
		Expenses decimal.Decimal `json:"expenses"`
		Balance  decimal.Decimal `json:"balance"`
	}
)

// CurrentMonth returns the current calendar month as a YYYY-MM prefix.
func CurrentMonth() string {
	return time.Now().Format("2006-01")
}

// ComputeTotals sums both lists. Empty inputs yield zero totals.
func ComputeTotals(income []Income, expenses []Expense) Totals {
	var t Totals
	for _, in := range income {
		t.Income = t.Income.Add(in.Amount)
	}
	for _, ex := range expenses {
		t.Expenses = t.Expenses.Add(ex.Amount)
	}
	t.Balance = t.Income.Sub(t.Expenses)
	return t
}

// MonthlyTotals sums only records whose date falls in the given YYYY-MM
// month. An empty yearMonth means the current calendar month.
func MonthlyTotals(income []Income, expenses []Expense, yearMonth string) Totals {
	if yearMonth == "" {
		yearMonth = CurrentMonth()
	}
	var t Totals
	for _, in := range income {
		if strings.HasPrefix(in.Date, yearMonth) {
			t.Income = t.Income.Add(in.Amount)
		}
	}
	for _, ex := range expenses {
		if strings.HasPrefix(ex.Date, yearMonth) {
			t.Expenses = t.Expenses.Add(ex.Amount)
		}
	}
	t.Balance = t.Income.Sub(t.Expenses)
	return t
}

// CategoryBreakdown sums the month's expenses per category, ordered by
// amount descending. The sort is stable: categories with equal sums keep
// the order in which they were first seen.
func CategoryBreakdown(expenses []Expense, yearMonth string) []CategoryAmount {
	if yearMonth == "" {
		yearMonth = CurrentMonth()
	}
	sums := make(map[string]decimal.Decimal)
	var order []string
	for _, ex := range expenses {
		if !strings.HasPrefix(ex.Date, yearMonth) {
			continue
		}
		if _, seen := sums[ex.Category]; !seen {
			order = append(order, ex.Category)
		}
		sums[ex.Category] = sums[ex.Category].Add(ex.Amount)
	}

	breakdown := make([]CategoryAmount, 0, len(order))
	for _, cat := range order {
		breakdown = append(breakdown, CategoryAmount{Category: cat, Amount: sums[cat]})
	}
	sort.SliceStable(breakdown, func(i, j int) bool {
		return breakdown[i].Amount.GreaterThan(breakdown[j].Amount)
	})
	return breakdown
}

// TopCategories returns the leading n entries of a breakdown.
func TopCategories(breakdown []CategoryAmount, n int) []CategoryAmount {
	if n < 0 {
		n = 0
	}
	if n > len(breakdown) {
		n = len(breakdown)
	}
	return breakdown[:n]
}

// BalanceSeries produces one point for every distinct date present in
// either list, ascending. Each point holds that day's income and expense
// sums and the running balance through that date. A single sweep over the
// sorted dates keeps this O(n log n) instead of re-filtering both lists
// per date.
func BalanceSeries(income []Income, expenses []Expense) []BalancePoint {
	type daySums struct {
		income   decimal.Decimal
		expenses decimal.Decimal
	}
	days := make(map[string]daySums)
	for _, in := range income {
		d := days[in.Date]
		d.income = d.income.Add(in.Amount)
		days[in.Date] = d
	}
	for _, ex := range expenses {
		d := days[ex.Date]
		d.expenses = d.expenses.Add(ex.Amount)
		days[ex.Date] = d
	}

	dates := make([]string, 0, len(days))
	for date := range days {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	series := make([]BalancePoint, 0, len(dates))
	var running decimal.Decimal
	for _, date := range dates {
		d := days[date]
		running = running.Add(d.income).Sub(d.expenses)
		series = append(series, BalancePoint{
			Date:     date,
			Income:   d.income,
			Expenses: d.expenses,
			Balance:  running,
		})
	}
	return series
}
