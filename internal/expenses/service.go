package expenses

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian-books/internal/platform/httpx"
	"github.com/meridian-books/meridian-books/internal/shared"
)

// RepositoryPort defines data access methods for hosting expenses.
type RepositoryPort interface {
	CreateExpense(ctx context.Context, expense HostingExpense) (*HostingExpense, error)
	GetExpense(ctx context.Context, id int64) (*HostingExpense, error)
	ListExpenses(ctx context.Context, filter ListFilter) ([]HostingExpense, int, error)
	UpdateExpense(ctx context.Context, id int64, updates map[string]any) error
	DeleteExpense(ctx context.Context, id int64) error
	SumByStatus(ctx context.Context, filter ListFilter) (map[ExpenseStatus]decimal.Decimal, error)
}

// AuditPort records expense events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles hosting expense business logic.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the expenses service. audit may be nil.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// Create records a new hosting expense.
func (s *Service) Create(ctx context.Context, input CreateExpenseInput) (*HostingExpense, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	status := input.Status
	if status == "" {
		status = StatusDraft
	}
	expense, err := s.repo.CreateExpense(ctx, HostingExpense{
		ProjectID:   input.ProjectID,
		Provider:    input.Provider,
		Category:    input.Category,
		Amount:      input.Amount,
		Currency:    input.Currency,
		PeriodStart: input.PeriodStart,
		PeriodEnd:   input.PeriodEnd,
		Status:      status,
		Notes:       input.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}
	s.record(ctx, input.ActorID, "expense.create", expense.ID, map[string]any{
		"provider": expense.Provider,
		"amount":   expense.Amount.String(),
	})
	return expense, nil
}

// Get returns one expense by id.
func (s *Service) Get(ctx context.Context, id int64) (*HostingExpense, error) {
	return s.repo.GetExpense(ctx, id)
}

// List returns expenses matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]HostingExpense, shared.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, filter.Status)
	}
	p := shared.NewPagination(filter.Page, filter.PerPage, 0)
	filter.Page = p.Page
	filter.PerPage = p.PerPage
	items, total, err := s.repo.ListExpenses(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list expenses: %w", err)
	}
	return items, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// Summary returns the summed amount per status for expenses matching the
// filter, for aggregate reporting on list views.
func (s *Service) Summary(ctx context.Context, filter ListFilter) (map[ExpenseStatus]decimal.Decimal, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, filter.Status)
	}
	totals, err := s.repo.SumByStatus(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("expense summary: %w", err)
	}
	return totals, nil
}

// Update applies partial mutations.
func (s *Service) Update(ctx context.Context, id int64, input UpdateExpenseInput) (*HostingExpense, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetExpense(ctx, id); err != nil {
		return nil, err
	}
	updates := make(map[string]any)
	if input.ProjectID != nil {
		updates["project_id"] = *input.ProjectID
	}
	if input.Provider != nil {
		updates["provider"] = *input.Provider
	}
	if input.Category != nil {
		updates["category"] = *input.Category
	}
	if input.Amount != nil {
		updates["amount"] = *input.Amount
	}
	if input.PeriodStart != nil {
		updates["period_start"] = *input.PeriodStart
	}
	if input.PeriodEnd != nil {
		updates["period_end"] = *input.PeriodEnd
	}
	if input.Status != nil {
		updates["status"] = string(*input.Status)
	}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
	}
	if len(updates) > 0 {
		if err := s.repo.UpdateExpense(ctx, id, updates); err != nil {
			return nil, fmt.Errorf("update expense: %w", err)
		}
		s.record(ctx, input.ActorID, "expense.update", id, nil)
	}
	return s.repo.GetExpense(ctx, id)
}

// Delete removes an expense.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	if _, err := s.repo.GetExpense(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.record(ctx, actorID, "expense.delete", id, nil)
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, expenseID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "hosting_expense",
		EntityID: fmt.Sprintf("%d", expenseID),
		Meta:     meta,
		At:       s.now(),
	})
}
