package expenses

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian-books/internal/shared"
)

const dateLayout = "2006-01-02"

type createExpenseRequest struct {
	ProjectID   *int64          `json:"project_id,omitempty"`
	Provider    string          `json:"provider" validate:"required,max=200"`
	Category    string          `json:"category,omitempty" validate:"max=100"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency" validate:"required,len=3"`
	PeriodStart string          `json:"period_start" validate:"required"`
	PeriodEnd   string          `json:"period_end" validate:"required"`
	Status      string          `json:"status,omitempty"`
	Notes       string          `json:"notes,omitempty" validate:"max=2000"`
}

type updateExpenseRequest struct {
	ProjectID   *int64           `json:"project_id,omitempty"`
	Provider    *string          `json:"provider,omitempty" validate:"omitempty,max=200"`
	Category    *string          `json:"category,omitempty" validate:"omitempty,max=100"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	PeriodStart *string          `json:"period_start,omitempty"`
	PeriodEnd   *string          `json:"period_end,omitempty"`
	Status      *string          `json:"status,omitempty"`
	Notes       *string          `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type expenseResponse struct {
	ID          int64           `json:"id"`
	ProjectID   *int64          `json:"project_id,omitempty"`
	Provider    string          `json:"provider"`
	Category    string          `json:"category,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	PeriodStart string          `json:"period_start"`
	PeriodEnd   string          `json:"period_end"`
	Status      ExpenseStatus   `json:"status"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type expenseListResponse struct {
	Expenses   []expenseResponse `json:"expenses"`
	Pagination shared.Pagination `json:"pagination"`
}

func toExpenseResponse(expense HostingExpense) expenseResponse {
	return expenseResponse{
		ID:          expense.ID,
		ProjectID:   expense.ProjectID,
		Provider:    expense.Provider,
		Category:    expense.Category,
		Amount:      expense.Amount,
		Currency:    expense.Currency,
		PeriodStart: expense.PeriodStart.Format(dateLayout),
		PeriodEnd:   expense.PeriodEnd.Format(dateLayout),
		Status:      expense.Status,
		Notes:       expense.Notes,
		CreatedAt:   expense.CreatedAt,
		UpdatedAt:   expense.UpdatedAt,
	}
}
