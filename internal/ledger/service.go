package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian-books/internal/shared"
)

// RepositoryPort defines data access methods for the ledger.
type RepositoryPort interface {
	CreateAccount(ctx context.Context, account Account) (*Account, error)
	GetAccount(ctx context.Context, id int64) (*Account, error)
	ListAccounts(ctx context.Context, includeInactive bool) ([]Account, error)
	UpdateAccount(ctx context.Context, id int64, updates map[string]any) error
	DeactivateAccount(ctx context.Context, id int64) error

	CreateEntry(ctx context.Context, entry Entry) (*Entry, error)
	GetEntry(ctx context.Context, id int64) (*Entry, error)
	ListEntries(ctx context.Context, accountID int64, limit, offset int) ([]Entry, int, error)
	ListEntriesForReplay(ctx context.Context, accountID int64) ([]Entry, error)
	UpdateEntry(ctx context.Context, id int64, updates map[string]any) error
	DeleteEntry(ctx context.Context, id int64) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates account and entry writes and balance replay.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateAccount opens a new account. The opening balance is fixed here and
// never recomputed afterwards.
func (s *Service) CreateAccount(ctx context.Context, input CreateAccountInput) (*Account, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	account, err := s.repo.CreateAccount(ctx, Account{
		Name:           input.Name,
		Type:           input.Type,
		Currency:       input.Currency,
		OpeningBalance: input.OpeningBalance,
		Description:    input.Description,
		IsActive:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	s.record(ctx, input.ActorID, "account.create", "account", account.ID, map[string]any{
		"name":     account.Name,
		"type":     string(account.Type),
		"currency": account.Currency,
	})
	return account, nil
}

// GetAccount returns one account by id.
func (s *Service) GetAccount(ctx context.Context, id int64) (*Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// ListAccounts returns accounts, active-only by default.
func (s *Service) ListAccounts(ctx context.Context, includeInactive bool) ([]Account, error) {
	return s.repo.ListAccounts(ctx, includeInactive)
}

// UpdateAccount applies partial account mutations.
func (s *Service) UpdateAccount(ctx context.Context, id int64, input UpdateAccountInput) (*Account, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetAccount(ctx, id); err != nil {
		return nil, err
	}
	updates := make(map[string]any)
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Type != nil {
		updates["type"] = string(*input.Type)
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if len(updates) > 0 {
		if err := s.repo.UpdateAccount(ctx, id, updates); err != nil {
			return nil, fmt.Errorf("update account: %w", err)
		}
		s.record(ctx, input.ActorID, "account.update", "account", id, nil)
	}
	return s.repo.GetAccount(ctx, id)
}

// DeactivateAccount clears the active flag. Entries referencing the account
// remain valid and still replay into its balance.
func (s *Service) DeactivateAccount(ctx context.Context, id int64, actorID int64) error {
	if _, err := s.repo.GetAccount(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeactivateAccount(ctx, id); err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}
	s.record(ctx, actorID, "account.deactivate", "account", id, nil)
	return nil
}

// CreateEntry posts a debit or credit against an existing, active account.
func (s *Service) CreateEntry(ctx context.Context, input CreateEntryInput) (*Entry, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	account, err := s.repo.GetAccount(ctx, input.AccountID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive {
		return nil, ErrAccountInactive
	}
	entry, err := s.repo.CreateEntry(ctx, Entry{
		AccountID:     input.AccountID,
		EntryDate:     input.EntryDate,
		Kind:          input.Kind,
		Amount:        input.Amount,
		Description:   input.Description,
		ReferenceKind: input.ReferenceKind,
		ReferenceID:   input.ReferenceID,
	})
	if err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}
	s.record(ctx, input.ActorID, "entry.create", "entry", entry.ID, map[string]any{
		"account_id": entry.AccountID,
		"kind":       string(entry.Kind),
		"amount":     entry.Amount.String(),
	})
	return entry, nil
}

// GetEntry returns one entry by id.
func (s *Service) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	return s.repo.GetEntry(ctx, id)
}

// ListEntries returns one account's entries, newest first, with pagination
// metadata.
func (s *Service) ListEntries(ctx context.Context, accountID int64, page, perPage int) ([]Entry, shared.Pagination, error) {
	if _, err := s.repo.GetAccount(ctx, accountID); err != nil {
		return nil, shared.Pagination{}, err
	}
	p := shared.NewPagination(page, perPage, 0)
	entries, total, err := s.repo.ListEntries(ctx, accountID, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list entries: %w", err)
	}
	return entries, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// UpdateEntry applies partial entry mutations. Balances pick the change up on
// the next replay; no stored figure needs fixing.
func (s *Service) UpdateEntry(ctx context.Context, id int64, input UpdateEntryInput) (*Entry, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetEntry(ctx, id); err != nil {
		return nil, err
	}
	updates := make(map[string]any)
	if input.EntryDate != nil {
		updates["entry_date"] = *input.EntryDate
	}
	if input.Kind != nil {
		updates["kind"] = string(*input.Kind)
	}
	if input.Amount != nil {
		updates["amount"] = *input.Amount
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.ReferenceKind != nil {
		updates["reference_kind"] = string(*input.ReferenceKind)
	}
	if input.ReferenceID != nil {
		updates["reference_id"] = *input.ReferenceID
	}
	if len(updates) > 0 {
		if err := s.repo.UpdateEntry(ctx, id, updates); err != nil {
			return nil, fmt.Errorf("update entry: %w", err)
		}
		s.record(ctx, input.ActorID, "entry.update", "entry", id, nil)
	}
	return s.repo.GetEntry(ctx, id)
}

// DeleteEntry removes an entry.
func (s *Service) DeleteEntry(ctx context.Context, id int64, actorID int64) error {
	if _, err := s.repo.GetEntry(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteEntry(ctx, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	s.record(ctx, actorID, "entry.delete", "entry", id, nil)
	return nil
}

// ComputeBalance replays every entry of the account, ordered by entry date
// then insertion order, over the opening balance. Every call re-derives from
// scratch; nothing is cached.
func (s *Service) ComputeBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	entries, err := s.repo.ListEntriesForReplay(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("replay entries: %w", err)
	}
	return replayBalance(account.OpeningBalance, entries), nil
}

// ComputeAllBalances replays every active account for summary views.
func (s *Service) ComputeAllBalances(ctx context.Context) ([]AccountBalance, error) {
	accounts, err := s.repo.ListAccounts(ctx, false)
	if err != nil {
		return nil, err
	}
	balances := make([]AccountBalance, 0, len(accounts))
	for _, account := range accounts {
		entries, err := s.repo.ListEntriesForReplay(ctx, account.ID)
		if err != nil {
			return nil, fmt.Errorf("replay entries for account %d: %w", account.ID, err)
		}
		balances = append(balances, AccountBalance{
			Account: account,
			Balance: replayBalance(account.OpeningBalance, entries),
		})
	}
	return balances, nil
}

// replayBalance folds entries over the opening balance. The caller must
// supply entries in (entry_date, insertion) order or same-day corrections
// become ambiguous.
func replayBalance(opening decimal.Decimal, entries []Entry) decimal.Decimal {
	balance := opening
	for _, entry := range entries {
		switch entry.Kind {
		case EntryDebit:
			balance = balance.Add(entry.Amount)
		case EntryCredit:
			balance = balance.Sub(entry.Amount)
		}
	}
	return balance
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
		At:       s.now(),
	})
}
