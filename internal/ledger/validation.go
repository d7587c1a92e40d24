package ledger

import (
	"fmt"
	"strings"

	"github.com/dvloznov/agritool/internal/domain"
)

// CategoryValidator validates transaction categories against the taxonomy.
type CategoryValidator struct {
	categories map[domain.TransactionType]map[string]string // type -> normalized name -> canonical name
}

// NewCategoryValidator builds a validator from the fixed expense and income
// category enumerations.
func NewCategoryValidator() *CategoryValidator {
	v := &CategoryValidator{
		categories: make(map[domain.TransactionType]map[string]string),
	}
	for _, t := range []domain.TransactionType{domain.Expense, domain.Income} {
		v.categories[t] = make(map[string]string)
		for _, name := range domain.CategoriesFor(t) {
			v.categories[t][normalizeCategory(name)] = name
		}
	}
	return v
}

// Canonical returns the enumeration spelling of category for type t.
// Matching ignores case and surrounding whitespace.
func (v *CategoryValidator) Canonical(t domain.TransactionType, category string) (string, error) {
	names, ok := v.categories[t]
	if !ok {
		return "", fmt.Errorf("%w: invalid type %q", domain.ErrInvalidCategory, t)
	}
	canonical, ok := names[normalizeCategory(category)]
	if !ok {
		return "", fmt.Errorf("%w: %q is not a valid %s category (valid: %s)",
			domain.ErrInvalidCategory, category, t, strings.Join(domain.CategoriesFor(t), ", "))
	}
	return canonical, nil
}

// normalizeCategory normalizes a category name for comparison.
func normalizeCategory(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
