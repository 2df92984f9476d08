package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian-books/internal/shared"
)

const dateLayout = "2006-01-02"

type createAccountRequest struct {
	Name           string          `json:"name" validate:"required,max=200"`
	Type           string          `json:"type" validate:"required"`
	Currency       string          `json:"currency" validate:"required,len=3"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Description    string          `json:"description,omitempty" validate:"max=1000"`
}

type updateAccountRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Type        *string `json:"type,omitempty"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
}

type createEntryRequest struct {
	EntryDate     string          `json:"entry_date" validate:"required"`
	Kind          string          `json:"kind" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description,omitempty" validate:"max=1000"`
	ReferenceKind string          `json:"reference_kind,omitempty"`
	ReferenceID   string          `json:"reference_id,omitempty" validate:"max=100"`
}

type updateEntryRequest struct {
	EntryDate     *string          `json:"entry_date,omitempty"`
	Kind          *string          `json:"kind,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Description   *string          `json:"description,omitempty" validate:"omitempty,max=1000"`
	ReferenceKind *string          `json:"reference_kind,omitempty"`
	ReferenceID   *string          `json:"reference_id,omitempty" validate:"omitempty,max=100"`
}

type accountResponse struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	Currency       string          `json:"currency"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Description    string          `json:"description,omitempty"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type accountBalanceResponse struct {
	accountResponse
	Balance decimal.Decimal `json:"balance"`
}

type entryResponse struct {
	ID            int64           `json:"id"`
	AccountID     int64           `json:"account_id"`
	EntryDate     string          `json:"entry_date"`
	Kind          EntryKind       `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description,omitempty"`
	ReferenceKind ReferenceKind   `json:"reference_kind,omitempty"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type entryListResponse struct {
	Entries    []entryResponse   `json:"entries"`
	Pagination shared.Pagination `json:"pagination"`
}

func toAccountResponse(account Account) accountResponse {
	return accountResponse{
		ID:             account.ID,
		Name:           account.Name,
		Type:           account.Type,
		Currency:       account.Currency,
		OpeningBalance: account.OpeningBalance,
		Description:    account.Description,
		IsActive:       account.IsActive,
		CreatedAt:      account.CreatedAt,
		UpdatedAt:      account.UpdatedAt,
	}
}

func toEntryResponse(entry Entry) entryResponse {
	return entryResponse{
		ID:            entry.ID,
		AccountID:     entry.AccountID,
		EntryDate:     entry.EntryDate.Format(dateLayout),
		Kind:          entry.Kind,
		Amount:        entry.Amount,
		Description:   entry.Description,
		ReferenceKind: entry.ReferenceKind,
		ReferenceID:   entry.ReferenceID,
		CreatedAt:     entry.CreatedAt,
		UpdatedAt:     entry.UpdatedAt,
	}
}
