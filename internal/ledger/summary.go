package ledger

import (
	"sort"

	"github.com/dvloznov/agritool/internal/domain"
	"github.com/shopspring/decimal"
)

// Summary holds the aggregates of one ledger snapshot.
type Summary struct {
	TotalIncome       decimal.Decimal            `json:"total_income"`
	TotalExpense      decimal.Decimal            `json:"total_expense"`
	Net               decimal.Decimal            `json:"net"`
	ExpenseByCategory map[string]decimal.Decimal `json:"expense_by_category"`
	Count             int                        `json:"count"`
}

// Summarize computes totals over records. It is pure and never cached;
// decimal arithmetic keeps Net and the category breakdown exact.
func Summarize(records []domain.Transaction) Summary {
	s := Summary{
		TotalIncome:       decimal.Zero,
		TotalExpense:      decimal.Zero,
		ExpenseByCategory: make(map[string]decimal.Decimal),
		Count:             len(records),
	}

	for _, r := range records {
		switch r.Type {
		case domain.Income:
			s.TotalIncome = s.TotalIncome.Add(r.Amount)
		case domain.Expense:
			s.TotalExpense = s.TotalExpense.Add(r.Amount)
			s.ExpenseByCategory[r.Category] = s.ExpenseByCategory[r.Category].Add(r.Amount)
		}
	}
	s.Net = s.TotalIncome.Sub(s.TotalExpense)
	return s
}

// Categories returns the expense categories present in the summary, sorted.
func (s Summary) Categories() []string {
	names := make([]string, 0, len(s.ExpenseByCategory))
	for name := range s.ExpenseByCategory {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
