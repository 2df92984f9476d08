package expenses

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/meridian-books/meridian-books/internal/platform/httpx"
)

// ExpenseStatus enumerates hosting expense states.
type ExpenseStatus string

const (
	StatusDraft      ExpenseStatus = "DRAFT"
	StatusPaid       ExpenseStatus = "PAID"
	StatusReimbursed ExpenseStatus = "REIMBURSED"
	StatusCancelled  ExpenseStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s ExpenseStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPaid, StatusReimbursed, StatusCancelled:
		return true
	}
	return false
}

// HostingExpense is a provider bill, optionally grouped under a project.
// It never posts to the ledger on its own; an operator who wants it on the
// books records a manual entry referencing it.
type HostingExpense struct {
	ID          int64
	ProjectID   *int64
	Provider    string
	Category    string
	Amount      decimal.Decimal
	Currency    string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Status      ExpenseStatus
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ErrExpenseNotFound marks a missing hosting expense.
var ErrExpenseNotFound = fmt.Errorf("%w: hosting expense", httpx.ErrNotFound)

// CreateExpenseInput carries a new hosting expense.
type CreateExpenseInput struct {
	ProjectID   *int64
	Provider    string
	Category    string
	Amount      decimal.Decimal
	Currency    string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Status      ExpenseStatus
	Notes       string
	ActorID     int64
}

// Validate checks the expense before persistence.
func (in CreateExpenseInput) Validate() error {
	if in.Provider == "" {
		return fmt.Errorf("%w: provider is required", httpx.ErrValidation)
	}
	if in.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", httpx.ErrValidation)
	}
	if _, err := currency.ParseISO(in.Currency); err != nil {
		return fmt.Errorf("%w: invalid currency code %q", httpx.ErrValidation, in.Currency)
	}
	if in.PeriodStart.IsZero() || in.PeriodEnd.IsZero() {
		return fmt.Errorf("%w: billing period is required", httpx.ErrValidation)
	}
	if in.PeriodEnd.Before(in.PeriodStart) {
		return fmt.Errorf("%w: billing period end precedes start", httpx.ErrValidation)
	}
	if in.Status != "" && !in.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, in.Status)
	}
	return nil
}

// UpdateExpenseInput carries partial mutations; nil fields stay untouched.
type UpdateExpenseInput struct {
	ProjectID   *int64
	Provider    *string
	Category    *string
	Amount      *decimal.Decimal
	PeriodStart *time.Time
	PeriodEnd   *time.Time
	Status      *ExpenseStatus
	Notes       *string
	ActorID     int64
}

// Validate checks the provided mutations.
func (in UpdateExpenseInput) Validate() error {
	if in.Provider != nil && *in.Provider == "" {
		return fmt.Errorf("%w: provider is required", httpx.ErrValidation)
	}
	if in.Amount != nil && in.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", httpx.ErrValidation)
	}
	if in.Status != nil && !in.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, *in.Status)
	}
	return nil
}

// ListFilter narrows expense listings.
type ListFilter struct {
	ProjectID int64
	Status    ExpenseStatus
	Provider  string
	Page      int
	PerPage   int
}
