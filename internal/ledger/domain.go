package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/meridian-books/meridian-books/internal/platform/httpx"
)

// AccountType enumerates the money-holding bucket categories.
type AccountType string

const (
	AccountTypeBank       AccountType = "BANK"
	AccountTypePettyCash  AccountType = "PETTY_CASH"
	AccountTypeReceivable AccountType = "RECEIVABLE"
	AccountTypePayable    AccountType = "PAYABLE"
	AccountTypeOther      AccountType = "OTHER"
)

// Valid reports whether the account type is a known value.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeBank, AccountTypePettyCash, AccountTypeReceivable, AccountTypePayable, AccountTypeOther:
		return true
	}
	return false
}

// EntryKind carries the polarity of an entry; amounts are always stored as
// non-negative magnitudes.
type EntryKind string

const (
	EntryDebit  EntryKind = "DEBIT"
	EntryCredit EntryKind = "CREDIT"
)

// Valid reports whether the kind is a known value.
func (k EntryKind) Valid() bool {
	return k == EntryDebit || k == EntryCredit
}

// ReferenceKind tags the loose origin of an entry. The paired reference id is
// opaque; no foreign key is enforced across entity types.
type ReferenceKind string

const (
	ReferenceManual         ReferenceKind = "MANUAL"
	ReferenceHostingExpense ReferenceKind = "HOSTING_EXPENSE"
	ReferenceInvoicePayment ReferenceKind = "INVOICE_PAYMENT"
	ReferenceAdjustment     ReferenceKind = "ADJUSTMENT"
)

// Valid reports whether the reference kind is a known value.
func (k ReferenceKind) Valid() bool {
	switch k {
	case ReferenceManual, ReferenceHostingExpense, ReferenceInvoicePayment, ReferenceAdjustment:
		return true
	}
	return false
}

// Account models a named money-holding bucket. The opening balance is fixed
// at creation and is the base for every balance replay.
type Account struct {
	ID             int64
	Name           string
	Type           AccountType
	Currency       string
	OpeningBalance decimal.Decimal
	Description    string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Entry models a single debit or credit posting against one account.
type Entry struct {
	ID            int64
	AccountID     int64
	EntryDate     time.Time
	Kind          EntryKind
	Amount        decimal.Decimal
	Description   string
	ReferenceKind ReferenceKind
	ReferenceID   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AccountBalance pairs an account with its replayed balance.
type AccountBalance struct {
	Account Account
	Balance decimal.Decimal
}

// Sentinel errors wrap the httpx base errors so handlers map them uniformly.
var (
	ErrAccountNotFound = fmt.Errorf("%w: account", httpx.ErrNotFound)
	ErrEntryNotFound   = fmt.Errorf("%w: entry", httpx.ErrNotFound)
	ErrAccountInactive = fmt.Errorf("%w: account is deactivated", httpx.ErrValidation)
)

// CreateAccountInput groups fields required to open an account.
type CreateAccountInput struct {
	Name           string
	Type           AccountType
	Currency       string
	OpeningBalance decimal.Decimal
	Description    string
	ActorID        int64
}

// Validate ensures account input meets minimum criteria.
func (in CreateAccountInput) Validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: account name required", httpx.ErrValidation)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unknown account type %q", httpx.ErrValidation, in.Type)
	}
	if _, err := currency.ParseISO(in.Currency); err != nil {
		return fmt.Errorf("%w: invalid currency code %q", httpx.ErrValidation, in.Currency)
	}
	return nil
}

// UpdateAccountInput carries optional account mutations. The opening balance
// is deliberately absent; it never changes after creation.
type UpdateAccountInput struct {
	Name        *string
	Type        *AccountType
	Description *string
	ActorID     int64
}

// Validate checks the fields that are present.
func (in UpdateAccountInput) Validate() error {
	if in.Name != nil && *in.Name == "" {
		return fmt.Errorf("%w: account name cannot be empty", httpx.ErrValidation)
	}
	if in.Type != nil && !in.Type.Valid() {
		return fmt.Errorf("%w: unknown account type %q", httpx.ErrValidation, *in.Type)
	}
	return nil
}

// CreateEntryInput groups fields required to post an entry.
type CreateEntryInput struct {
	AccountID     int64
	EntryDate     time.Time
	Kind          EntryKind
	Amount        decimal.Decimal
	Description   string
	ReferenceKind ReferenceKind
	ReferenceID   string
	ActorID       int64
}

// Validate ensures entry input meets minimum criteria. Amounts carry no sign;
// polarity comes from the kind alone.
func (in CreateEntryInput) Validate() error {
	if in.AccountID == 0 {
		return fmt.Errorf("%w: account id required", httpx.ErrValidation)
	}
	if in.EntryDate.IsZero() {
		return fmt.Errorf("%w: entry date required", httpx.ErrValidation)
	}
	if !in.Kind.Valid() {
		return fmt.Errorf("%w: unknown entry kind %q", httpx.ErrValidation, in.Kind)
	}
	if in.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", httpx.ErrValidation)
	}
	if in.ReferenceKind != "" && !in.ReferenceKind.Valid() {
		return fmt.Errorf("%w: unknown reference kind %q", httpx.ErrValidation, in.ReferenceKind)
	}
	if in.ReferenceKind == "" && in.ReferenceID != "" {
		return fmt.Errorf("%w: reference id requires a reference kind", httpx.ErrValidation)
	}
	return nil
}

// UpdateEntryInput carries optional entry mutations.
type UpdateEntryInput struct {
	EntryDate     *time.Time
	Kind          *EntryKind
	Amount        *decimal.Decimal
	Description   *string
	ReferenceKind *ReferenceKind
	ReferenceID   *string
	ActorID       int64
}

// Validate checks the fields that are present.
func (in UpdateEntryInput) Validate() error {
	if in.EntryDate != nil && in.EntryDate.IsZero() {
		return fmt.Errorf("%w: entry date cannot be empty", httpx.ErrValidation)
	}
	if in.Kind != nil && !in.Kind.Valid() {
		return fmt.Errorf("%w: unknown entry kind %q", httpx.ErrValidation, *in.Kind)
	}
	if in.Amount != nil && in.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", httpx.ErrValidation)
	}
	if in.ReferenceKind != nil && *in.ReferenceKind != "" && !in.ReferenceKind.Valid() {
		return fmt.Errorf("%w: unknown reference kind %q", httpx.ErrValidation, *in.ReferenceKind)
	}
	return nil
}
