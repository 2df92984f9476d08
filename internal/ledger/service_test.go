package ledger

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryLedgerRepo struct {
	accounts      map[int64]*Account
	entries       map[int64]*Entry
	nextAccountID int64
	nextEntryID   int64
}

func newMemoryLedgerRepo() *memoryLedgerRepo {
	return &memoryLedgerRepo{
		accounts: make(map[int64]*Account),
		entries:  make(map[int64]*Entry),
	}
}

func (r *memoryLedgerRepo) CreateAccount(ctx context.Context, account Account) (*Account, error) {
	r.nextAccountID++
	account.ID = r.nextAccountID
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	r.accounts[account.ID] = &account
	return &account, nil
}

func (r *memoryLedgerRepo) GetAccount(ctx context.Context, id int64) (*Account, error) {
	account, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (r *memoryLedgerRepo) ListAccounts(ctx context.Context, includeInactive bool) ([]Account, error) {
	var out []Account
	for _, account := range r.accounts {
		if !includeInactive && !account.IsActive {
			continue
		}
		out = append(out, *account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryLedgerRepo) UpdateAccount(ctx context.Context, id int64, updates map[string]any) error {
	account, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	if name, ok := updates["name"].(string); ok {
		account.Name = name
	}
	if accountType, ok := updates["type"].(string); ok {
		account.Type = AccountType(accountType)
	}
	if description, ok := updates["description"].(string); ok {
		account.Description = description
	}
	return nil
}

func (r *memoryLedgerRepo) DeactivateAccount(ctx context.Context, id int64) error {
	account, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	account.IsActive = false
	return nil
}

func (r *memoryLedgerRepo) CreateEntry(ctx context.Context, entry Entry) (*Entry, error) {
	r.nextEntryID++
	entry.ID = r.nextEntryID
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt
	r.entries[entry.ID] = &entry
	return &entry, nil
}

func (r *memoryLedgerRepo) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	entry, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	copied := *entry
	return &copied, nil
}

func (r *memoryLedgerRepo) ListEntries(ctx context.Context, accountID int64, limit, offset int) ([]Entry, int, error) {
	all := r.replayOrdered(accountID)
	total := len(all)
	// newest first for listings
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (r *memoryLedgerRepo) ListEntriesForReplay(ctx context.Context, accountID int64) ([]Entry, error) {
	return r.replayOrdered(accountID), nil
}

func (r *memoryLedgerRepo) replayOrdered(accountID int64) []Entry {
	var out []Entry
	for _, entry := range r.entries {
		if entry.AccountID == accountID {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EntryDate.Equal(out[j].EntryDate) {
			return out[i].EntryDate.Before(out[j].EntryDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *memoryLedgerRepo) UpdateEntry(ctx context.Context, id int64, updates map[string]any) error {
	entry, ok := r.entries[id]
	if !ok {
		return ErrEntryNotFound
	}
	if entryDate, ok := updates["entry_date"].(time.Time); ok {
		entry.EntryDate = entryDate
	}
	if kind, ok := updates["kind"].(string); ok {
		entry.Kind = EntryKind(kind)
	}
	if amount, ok := updates["amount"].(decimal.Decimal); ok {
		entry.Amount = amount
	}
	if description, ok := updates["description"].(string); ok {
		entry.Description = description
	}
	return nil
}

func (r *memoryLedgerRepo) DeleteEntry(ctx context.Context, id int64) error {
	if _, ok := r.entries[id]; !ok {
		return ErrEntryNotFound
	}
	delete(r.entries, id)
	return nil
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func mustDecimal(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	require.NoError(t, err)
	return d
}

func newTestAccount(t *testing.T, svc *Service, opening string) *Account {
	t.Helper()
	account, err := svc.CreateAccount(context.Background(), CreateAccountInput{
		Name:           "Ops Bank",
		Type:           AccountTypeBank,
		Currency:       "EUR",
		OpeningBalance: mustDecimal(t, opening),
	})
	require.NoError(t, err)
	return account
}

func TestComputeBalanceReplaysEntriesInOrder(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)

	account := newTestAccount(t, svc, "1000.00")

	d1 := date(2026, time.March, 1)
	d2 := date(2026, time.March, 2)

	_, err := svc.CreateEntry(ctx, CreateEntryInput{AccountID: account.ID, EntryDate: d1, Kind: EntryDebit, Amount: mustDecimal(t, "250.00")})
	require.NoError(t, err)
	_, err = svc.CreateEntry(ctx, CreateEntryInput{AccountID: account.ID, EntryDate: d1, Kind: EntryCredit, Amount: mustDecimal(t, "100.00")})
	require.NoError(t, err)
	_, err = svc.CreateEntry(ctx, CreateEntryInput{AccountID: account.ID, EntryDate: d2, Kind: EntryDebit, Amount: mustDecimal(t, "50.00")})
	require.NoError(t, err)

	balance, err := svc.ComputeBalance(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, balance.Equal(mustDecimal(t, "1200.00")), "got %s", balance)
}

func TestComputeBalanceIsDeterministic(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)

	account := newTestAccount(t, svc, "10.50")
	for i := 0; i < 5; i++ {
		_, err := svc.CreateEntry(ctx, CreateEntryInput{
			AccountID: account.ID,
			EntryDate: date(2026, time.January, 10),
			Kind:      EntryDebit,
			Amount:    mustDecimal(t, "1.01"),
		})
		require.NoError(t, err)
	}

	first, err := svc.ComputeBalance(ctx, account.ID)
	require.NoError(t, err)
	second, err := svc.ComputeBalance(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, first.Equal(second))
	require.True(t, first.Equal(mustDecimal(t, "15.55")))
}

func TestComputeBalanceWithoutEntriesYieldsOpeningBalance(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)

	account := newTestAccount(t, svc, "-42.55")

	balance, err := svc.ComputeBalance(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, balance.Equal(account.OpeningBalance))
}

func TestComputeBalanceUnknownAccount(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)

	_, err := svc.ComputeBalance(context.Background(), 9999)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestDeactivatedAccountStillReplaysButRejectsNewEntries(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)

	account := newTestAccount(t, svc, "100.00")
	_, err := svc.CreateEntry(ctx, CreateEntryInput{AccountID: account.ID, EntryDate: date(2026, time.April, 1), Kind: EntryDebit, Amount: mustDecimal(t, "25.00")})
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateAccount(ctx, account.ID, 1))

	balance, err := svc.ComputeBalance(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, balance.Equal(mustDecimal(t, "125.00")))

	_, err = svc.CreateEntry(ctx, CreateEntryInput{AccountID: account.ID, EntryDate: date(2026, time.April, 2), Kind: EntryDebit, Amount: mustDecimal(t, "1.00")})
	require.ErrorIs(t, err, ErrAccountInactive)
}

func TestCreateEntryRejectsNegativeAmount(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)

	account := newTestAccount(t, svc, "0")

	_, err := svc.CreateEntry(ctx, CreateEntryInput{
		AccountID: account.ID,
		EntryDate: date(2026, time.April, 1),
		Kind:      EntryCredit,
		Amount:    mustDecimal(t, "-5.00"),
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "amount must not be negative")
}

func TestCreateAccountRejectsUnknownCurrency(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)

	_, err := svc.CreateAccount(context.Background(), CreateAccountInput{
		Name:     "Petty Cash",
		Type:     AccountTypePettyCash,
		Currency: "ZZZ",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid currency code")
}

func TestUpdateEntryAffectsNextReplay(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)

	account := newTestAccount(t, svc, "100.00")
	entry, err := svc.CreateEntry(ctx, CreateEntryInput{AccountID: account.ID, EntryDate: date(2026, time.May, 1), Kind: EntryDebit, Amount: mustDecimal(t, "10.00")})
	require.NoError(t, err)

	newAmount := mustDecimal(t, "40.00")
	_, err = svc.UpdateEntry(ctx, entry.ID, UpdateEntryInput{Amount: &newAmount})
	require.NoError(t, err)

	balance, err := svc.ComputeBalance(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, balance.Equal(mustDecimal(t, "140.00")))
}

func TestComputeAllBalancesSkipsInactiveAccounts(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)

	active := newTestAccount(t, svc, "10.00")
	inactive := newTestAccount(t, svc, "20.00")
	require.NoError(t, svc.DeactivateAccount(ctx, inactive.ID, 1))

	balances, err := svc.ComputeAllBalances(ctx)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	require.Equal(t, active.ID, balances[0].Account.ID)
	require.True(t, balances[0].Balance.Equal(mustDecimal(t, "10.00")))
}

func TestListEntriesPaginates(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)

	account := newTestAccount(t, svc, "0")
	for i := 0; i < 5; i++ {
		_, err := svc.CreateEntry(ctx, CreateEntryInput{
			AccountID: account.ID,
			EntryDate: date(2026, time.June, 1+i),
			Kind:      EntryDebit,
			Amount:    mustDecimal(t, "1.00"),
		})
		require.NoError(t, err)
	}

	entries, pagination, err := svc.ListEntries(ctx, account.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, 5, pagination.Total)
	require.Equal(t, 3, pagination.TotalPages)
	// newest first
	require.Equal(t, date(2026, time.June, 5), entries[0].EntryDate)
}

func TestWriteStatementCSV(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)

	account := newTestAccount(t, svc, "1000.00")
	_, err := svc.CreateEntry(ctx, CreateEntryInput{AccountID: account.ID, EntryDate: date(2026, time.March, 1), Kind: EntryDebit, Amount: mustDecimal(t, "250.00")})
	require.NoError(t, err)
	_, err = svc.CreateEntry(ctx, CreateEntryInput{AccountID: account.ID, EntryDate: date(2026, time.March, 1), Kind: EntryCredit, Amount: mustDecimal(t, "100.00")})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.WriteStatementCSV(ctx, account.ID, &buf))

	out := buf.String()
	require.Contains(t, out, "date,kind,amount,description,reference,balance")
	require.Contains(t, out, "2026-03-01,DEBIT,250.00")
	require.True(t, strings.Contains(out, "1150.00"), "statement should end at the replayed balance: %s", out)
}
