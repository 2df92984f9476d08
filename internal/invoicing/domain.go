package invoicing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian-books/internal/platform/httpx"
)

// InvoiceStatus enumerates invoice lifecycle states.
type InvoiceStatus string

const (
	StatusDraft     InvoiceStatus = "DRAFT"
	StatusSent      InvoiceStatus = "SENT"
	StatusPaid      InvoiceStatus = "PAID"
	StatusOverdue   InvoiceStatus = "OVERDUE"
	StatusCancelled InvoiceStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// PaymentTerms enumerates standard net payment terms.
type PaymentTerms string

const (
	TermsDueOnReceipt PaymentTerms = "DUE_ON_RECEIPT"
	TermsNet15        PaymentTerms = "NET_15"
	TermsNet30        PaymentTerms = "NET_30"
	TermsNet45        PaymentTerms = "NET_45"
	TermsNet60        PaymentTerms = "NET_60"
)

// Valid reports whether t is a known payment term.
func (t PaymentTerms) Valid() bool {
	switch t {
	case TermsDueOnReceipt, TermsNet15, TermsNet30, TermsNet45, TermsNet60:
		return true
	}
	return false
}

// DueDays returns the number of days the client has to pay.
func (t PaymentTerms) DueDays() int {
	switch t {
	case TermsNet15:
		return 15
	case TermsNet30:
		return 30
	case TermsNet45:
		return 45
	case TermsNet60:
		return 60
	default:
		return 0
	}
}

// Invoice is a billing document for one client. Subtotal, tax amount and
// total are derived from the lines and never accepted from callers.
type Invoice struct {
	ID               int64
	Number           string
	ClientID         int64
	ProjectID        *int64
	IssueDate        time.Time
	DueDate          time.Time
	Status           InvoiceStatus
	Terms            PaymentTerms
	TaxRate          decimal.Decimal
	DiscountAmount   decimal.Decimal
	Subtotal         decimal.Decimal
	TaxAmount        decimal.Decimal
	Total            decimal.Decimal
	Notes            string
	PaymentDate      *time.Time
	PaymentMethod    string
	PaymentReference string
	Lines            []InvoiceLine
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// InvoiceLine is one billable row on an invoice.
type InvoiceLine struct {
	ID          int64
	InvoiceID   int64
	Position    int
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	TaxRate     *decimal.Decimal
	TotalPrice  decimal.Decimal
}

// Domain errors for the invoicing module.
var (
	ErrInvoiceNotFound = fmt.Errorf("%w: invoice", httpx.ErrNotFound)
	ErrInvoicePaid     = fmt.Errorf("%w: invoice is paid and immutable", httpx.ErrInvalidTransition)
	ErrNumberConflict  = fmt.Errorf("%w: invoice number already taken", httpx.ErrConflict)
)

func transitionError(from, to InvoiceStatus) error {
	return fmt.Errorf("%w: cannot move invoice from %s to %s", httpx.ErrInvalidTransition, from, to)
}

// LineInput is a caller-supplied invoice line before derivation.
type LineInput struct {
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	TaxRate     *decimal.Decimal
}

// Validate rejects lines that would silently corrupt the derived totals.
func (in LineInput) Validate() error {
	if in.Description == "" {
		return fmt.Errorf("%w: line description is required", httpx.ErrValidation)
	}
	if in.Quantity <= 0 {
		return fmt.Errorf("%w: line quantity must be positive", httpx.ErrValidation)
	}
	if in.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: line unit price must not be negative", httpx.ErrValidation)
	}
	if in.TaxRate != nil && in.TaxRate.IsNegative() {
		return fmt.Errorf("%w: line tax rate must not be negative", httpx.ErrValidation)
	}
	return nil
}

// CreateInvoiceInput carries a new invoice request.
type CreateInvoiceInput struct {
	ClientID       int64
	ProjectID      *int64
	IssueDate      time.Time
	Terms          PaymentTerms
	TaxRate        decimal.Decimal
	DiscountAmount decimal.Decimal
	Notes          string
	Lines          []LineInput
	ActorID        int64
}

// Validate checks the invoice request before any totals are computed.
func (in CreateInvoiceInput) Validate() error {
	if in.ClientID <= 0 {
		return fmt.Errorf("%w: client id is required", httpx.ErrValidation)
	}
	if in.IssueDate.IsZero() {
		return fmt.Errorf("%w: issue date is required", httpx.ErrValidation)
	}
	if !in.Terms.Valid() {
		return fmt.Errorf("%w: unknown payment terms %q", httpx.ErrValidation, in.Terms)
	}
	if in.TaxRate.IsNegative() {
		return fmt.Errorf("%w: tax rate must not be negative", httpx.ErrValidation)
	}
	if in.DiscountAmount.IsNegative() {
		return fmt.Errorf("%w: discount must not be negative", httpx.ErrValidation)
	}
	if len(in.Lines) == 0 {
		return fmt.Errorf("%w: at least one line is required", httpx.ErrValidation)
	}
	for i, line := range in.Lines {
		if err := line.Validate(); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return nil
}

// UpdateInvoiceInput carries partial invoice mutations. A nil field is left
// untouched; a non-nil Lines slice replaces the whole line set.
type UpdateInvoiceInput struct {
	ClientID       *int64
	ProjectID      *int64
	IssueDate      *time.Time
	DueDate        *time.Time
	Terms          *PaymentTerms
	TaxRate        *decimal.Decimal
	DiscountAmount *decimal.Decimal
	Notes          *string
	Lines          []LineInput
	ActorID        int64
}

// Validate checks the provided mutations.
func (in UpdateInvoiceInput) Validate() error {
	if in.ClientID != nil && *in.ClientID <= 0 {
		return fmt.Errorf("%w: client id is required", httpx.ErrValidation)
	}
	if in.Terms != nil && !in.Terms.Valid() {
		return fmt.Errorf("%w: unknown payment terms %q", httpx.ErrValidation, *in.Terms)
	}
	if in.TaxRate != nil && in.TaxRate.IsNegative() {
		return fmt.Errorf("%w: tax rate must not be negative", httpx.ErrValidation)
	}
	if in.DiscountAmount != nil && in.DiscountAmount.IsNegative() {
		return fmt.Errorf("%w: discount must not be negative", httpx.ErrValidation)
	}
	// nil leaves the current lines alone; an explicit empty set is rejected
	if in.Lines != nil && len(in.Lines) == 0 {
		return fmt.Errorf("%w: at least one line is required", httpx.ErrValidation)
	}
	for i, line := range in.Lines {
		if err := line.Validate(); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return nil
}

// UpdateStatusInput carries an explicit transition request, optionally with
// payment metadata when moving to PAID.
type UpdateStatusInput struct {
	Status           InvoiceStatus
	PaymentDate      *time.Time
	PaymentMethod    string
	PaymentReference string
	ActorID          int64
}

// Validate checks the transition request.
func (in UpdateStatusInput) Validate() error {
	if !in.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, in.Status)
	}
	return nil
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	Status   InvoiceStatus
	ClientID int64
	Page     int
	PerPage  int
}
