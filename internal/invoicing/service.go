package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-books/meridian-books/internal/platform/httpx"
	"github.com/meridian-books/meridian-books/internal/shared"
)

// RepositoryPort defines data access methods for invoices.
type RepositoryPort interface {
	// CreateInvoice persists the invoice and its lines, assigning the next
	// invoice number. Number collisions are resolved inside the repository.
	CreateInvoice(ctx context.Context, invoice Invoice) (*Invoice, error)
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, int, error)
	// UpdateInvoice applies column updates and, when lines is non-nil,
	// replaces the whole line set in the same transaction.
	UpdateInvoice(ctx context.Context, id int64, updates map[string]any, lines []InvoiceLine) error
	DeleteInvoice(ctx context.Context, id int64) error
}

// AuditPort records invoicing events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// StatsInvalidator signals the statistics cache that invoice rows changed.
type StatsInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service coordinates invoice writes, derived totals and the lifecycle
// state machine.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	stats StatsInvalidator
	now   func() time.Time
}

// NewService constructs the invoicing service. audit and stats may be nil.
func NewService(repo RepositoryPort, audit AuditPort, stats StatsInvalidator) *Service {
	return &Service{repo: repo, audit: audit, stats: stats, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create opens a new draft invoice. Totals are derived from the lines; the
// due date follows the payment terms.
func (s *Service) Create(ctx context.Context, input CreateInvoiceInput) (*Invoice, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	totals := ComputeTotals(input.Lines, input.TaxRate, input.DiscountAmount)
	invoice := Invoice{
		ClientID:       input.ClientID,
		ProjectID:      input.ProjectID,
		IssueDate:      input.IssueDate,
		DueDate:        input.IssueDate.AddDate(0, 0, input.Terms.DueDays()),
		Status:         StatusDraft,
		Terms:          input.Terms,
		TaxRate:        input.TaxRate,
		DiscountAmount: input.DiscountAmount,
		Subtotal:       totals.Subtotal,
		TaxAmount:      totals.TaxAmount,
		Total:          totals.Total,
		Notes:          input.Notes,
		Lines:          buildLines(input.Lines),
	}
	created, err := s.repo.CreateInvoice(ctx, invoice)
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	s.record(ctx, input.ActorID, "invoice.create", created.ID, map[string]any{
		"number": created.Number,
		"total":  created.Total.String(),
	})
	s.invalidate(ctx)
	return created, nil
}

// Get returns one invoice with its lines.
func (s *Service) Get(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// List returns invoices filtered by status and client, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Invoice, shared.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, filter.Status)
	}
	p := shared.NewPagination(filter.Page, filter.PerPage, 0)
	filter.Page = p.Page
	filter.PerPage = p.PerPage
	invoices, total, err := s.repo.ListInvoices(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// Update applies partial mutations. Paid invoices are immutable. Totals are
// recomputed whenever lines, tax rate or discount change.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInvoiceInput) (*Invoice, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	invoice, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == StatusPaid {
		return nil, ErrInvoicePaid
	}

	updates := make(map[string]any)
	if input.ClientID != nil {
		updates["client_id"] = *input.ClientID
	}
	if input.ProjectID != nil {
		updates["project_id"] = *input.ProjectID
	}
	if input.IssueDate != nil {
		updates["issue_date"] = *input.IssueDate
	}
	if input.DueDate != nil {
		updates["due_date"] = *input.DueDate
	}
	if input.Terms != nil {
		updates["terms"] = string(*input.Terms)
	}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
	}

	taxRate := invoice.TaxRate
	if input.TaxRate != nil {
		taxRate = *input.TaxRate
		updates["tax_rate"] = taxRate
	}
	discount := invoice.DiscountAmount
	if input.DiscountAmount != nil {
		discount = *input.DiscountAmount
		updates["discount_amount"] = discount
	}

	var newLines []InvoiceLine
	lineInputs := linesAsInputs(invoice.Lines)
	if input.Lines != nil {
		lineInputs = input.Lines
		newLines = buildLines(input.Lines)
	}
	if input.Lines != nil || input.TaxRate != nil || input.DiscountAmount != nil {
		totals := ComputeTotals(lineInputs, taxRate, discount)
		updates["subtotal"] = totals.Subtotal
		updates["tax_amount"] = totals.TaxAmount
		updates["total"] = totals.Total
	}

	if len(updates) > 0 || newLines != nil {
		if err := s.repo.UpdateInvoice(ctx, id, updates, newLines); err != nil {
			return nil, fmt.Errorf("update invoice: %w", err)
		}
		s.record(ctx, input.ActorID, "invoice.update", id, nil)
		s.invalidate(ctx)
	}
	return s.repo.GetInvoice(ctx, id)
}

// UpdateStatus applies an explicit lifecycle transition.
//
// Allowed moves: DRAFT to SENT; any non-PAID state to PAID, which stamps
// payment metadata; OVERDUE and CANCELLED as operator overrides from any
// non-PAID state. Nothing leaves PAID, including PAID itself, and nothing
// moves back to DRAFT.
func (s *Service) UpdateStatus(ctx context.Context, id int64, input UpdateStatusInput) (*Invoice, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	invoice, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == StatusPaid {
		return nil, transitionError(invoice.Status, input.Status)
	}

	updates := map[string]any{"status": string(input.Status)}
	switch input.Status {
	case StatusSent:
		if invoice.Status != StatusDraft {
			return nil, transitionError(invoice.Status, input.Status)
		}
	case StatusPaid:
		paidAt := s.now()
		if input.PaymentDate != nil {
			paidAt = *input.PaymentDate
		}
		updates["payment_date"] = paidAt
		updates["payment_method"] = input.PaymentMethod
		updates["payment_reference"] = input.PaymentReference
	case StatusOverdue, StatusCancelled:
		// operator overrides, no extra guard
	case StatusDraft:
		// nothing re-enters DRAFT; duplication is the way back to an editable copy
		return nil, transitionError(invoice.Status, input.Status)
	}

	if err := s.repo.UpdateInvoice(ctx, id, updates, nil); err != nil {
		return nil, fmt.Errorf("update invoice status: %w", err)
	}
	s.record(ctx, input.ActorID, "invoice.status", id, map[string]any{
		"from": string(invoice.Status),
		"to":   string(input.Status),
	})
	s.invalidate(ctx)
	return s.repo.GetInvoice(ctx, id)
}

// Send moves a draft invoice to SENT.
func (s *Service) Send(ctx context.Context, id int64, actorID int64) (*Invoice, error) {
	return s.UpdateStatus(ctx, id, UpdateStatusInput{Status: StatusSent, ActorID: actorID})
}

// Duplicate clones an invoice into a fresh draft: next number, today's issue
// date, due date re-derived from the terms, payment metadata cleared, lines
// copied as they stand. Works from any source status, paid included.
func (s *Service) Duplicate(ctx context.Context, id int64, actorID int64) (*Invoice, error) {
	source, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	issueDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	clone := Invoice{
		ClientID:       source.ClientID,
		ProjectID:      source.ProjectID,
		IssueDate:      issueDate,
		DueDate:        issueDate.AddDate(0, 0, source.Terms.DueDays()),
		Status:         StatusDraft,
		Terms:          source.Terms,
		TaxRate:        source.TaxRate,
		DiscountAmount: source.DiscountAmount,
		Subtotal:       source.Subtotal,
		TaxAmount:      source.TaxAmount,
		Total:          source.Total,
		Notes:          source.Notes,
		Lines:          copyLines(source.Lines),
	}
	created, err := s.repo.CreateInvoice(ctx, clone)
	if err != nil {
		return nil, fmt.Errorf("duplicate invoice: %w", err)
	}
	s.record(ctx, actorID, "invoice.duplicate", created.ID, map[string]any{
		"source_id": source.ID,
		"number":    created.Number,
	})
	s.invalidate(ctx)
	return created, nil
}

// Delete removes an invoice and its lines. Paid invoices cannot be deleted.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	invoice, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return err
	}
	if invoice.Status == StatusPaid {
		return ErrInvoicePaid
	}
	if err := s.repo.DeleteInvoice(ctx, id); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	s.record(ctx, actorID, "invoice.delete", id, map[string]any{"number": invoice.Number})
	s.invalidate(ctx)
	return nil
}

func buildLines(inputs []LineInput) []InvoiceLine {
	lines := make([]InvoiceLine, 0, len(inputs))
	for i, in := range inputs {
		lines = append(lines, InvoiceLine{
			Position:    i + 1,
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			TaxRate:     in.TaxRate,
			TotalPrice:  lineTotal(in),
		})
	}
	return lines
}

func copyLines(lines []InvoiceLine) []InvoiceLine {
	out := make([]InvoiceLine, 0, len(lines))
	for i, line := range lines {
		out = append(out, InvoiceLine{
			Position:    i + 1,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TaxRate:     line.TaxRate,
			TotalPrice:  line.TotalPrice,
		})
	}
	return out
}

func linesAsInputs(lines []InvoiceLine) []LineInput {
	inputs := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		inputs = append(inputs, LineInput{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TaxRate:     line.TaxRate,
		})
	}
	return inputs
}

func (s *Service) record(ctx context.Context, actorID int64, action string, invoiceID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "invoice",
		EntityID: fmt.Sprintf("%d", invoiceID),
		Meta:     meta,
		At:       s.now(),
	})
}

func (s *Service) invalidate(ctx context.Context) {
	if s.stats == nil {
		return
	}
	_ = s.stats.Invalidate(ctx)
}
