package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a ledger entry.
type TransactionType string

const (
	Expense TransactionType = "Expense"
	Income  TransactionType = "Income"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == Expense || t == Income
}

// Transaction is one immutable entry in a user's ledger.
type Transaction struct {
	ID       string          `json:"id"`
	Date     civil.Date      `json:"date"`
	Type     TransactionType `json:"type"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Notes    string          `json:"notes,omitempty"`
}

// ExpenseCategories lists the categories accepted for expenses, in display order.
var ExpenseCategories = []string{
	"Seeds",
	"Fertilizer",
	"Pesticides",
	"Labor",
	"Equipment",
	"Irrigation",
	"Transport",
	"Other",
}

// IncomeCategories lists the categories accepted for income, in display order.
var IncomeCategories = []string{
	"Crop Sale",
	"Livestock Sale",
	"Subsidy",
	"Other",
}

// CategoriesFor returns the category enumeration conditioned on t.
func CategoriesFor(t TransactionType) []string {
	switch t {
	case Expense:
		return ExpenseCategories
	case Income:
		return IncomeCategories
	default:
		return nil
	}
}
