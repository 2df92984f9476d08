package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian-books/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// --- Account Operations ---

// CreateAccount inserts a new account.
func (r *Repository) CreateAccount(ctx context.Context, account Account) (*Account, error) {
	query := `
		INSERT INTO accounts (name, type, currency, opening_balance, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		account.Name,
		string(account.Type),
		account.Currency,
		db.DecimalToNumeric(account.OpeningBalance),
		account.Description,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}

	account.IsActive = true
	return &account, nil
}

// GetAccount retrieves an account by ID. Deactivated accounts are still
// returned; callers decide whether inactivity matters.
func (r *Repository) GetAccount(ctx context.Context, id int64) (*Account, error) {
	query := `
		SELECT id, name, type, currency, opening_balance, description, is_active, created_at, updated_at
		FROM accounts
		WHERE id = $1`

	account, err := scanAccount(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ListAccounts returns accounts ordered by name, active-only unless asked
// otherwise.
func (r *Repository) ListAccounts(ctx context.Context, includeInactive bool) ([]Account, error) {
	query := `
		SELECT id, name, type, currency, opening_balance, description, is_active, created_at, updated_at
		FROM accounts`
	if !includeInactive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name, id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// UpdateAccount applies the given column updates.
func (r *Repository) UpdateAccount(ctx context.Context, id int64, updates map[string]any) error {
	query, args := buildUpdate("accounts", id, updates)
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// DeactivateAccount clears the active flag; the row and its entries remain.
func (r *Repository) DeactivateAccount(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE accounts SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// --- Entry Operations ---

// CreateEntry inserts a new entry.
func (r *Repository) CreateEntry(ctx context.Context, entry Entry) (*Entry, error) {
	query := `
		INSERT INTO entries (account_id, entry_date, kind, amount, description, reference_kind, reference_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	var referenceKind, referenceID pgtype.Text
	if entry.ReferenceKind != "" {
		referenceKind = pgtype.Text{String: string(entry.ReferenceKind), Valid: true}
		referenceID = pgtype.Text{String: entry.ReferenceID, Valid: true}
	}

	err := r.pool.QueryRow(ctx, query,
		entry.AccountID,
		entry.EntryDate,
		string(entry.Kind),
		db.DecimalToNumeric(entry.Amount),
		entry.Description,
		referenceKind,
		referenceID,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetEntry retrieves an entry by ID.
func (r *Repository) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	query := entrySelect + ` WHERE id = $1`

	entry, err := scanEntry(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListEntries returns one page of an account's entries, newest first, with
// the total count for pagination.
func (r *Repository) ListEntries(ctx context.Context, accountID int64, limit, offset int) ([]Entry, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM entries WHERE account_id = $1`, accountID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := entrySelect + `
		WHERE account_id = $1
		ORDER BY entry_date DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries, err := collectEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListEntriesForReplay returns every entry of the account in replay order.
// The (entry_date, id) ordering is load-bearing: same-day entries must fold
// in the order they were recorded or the running balance is ambiguous.
func (r *Repository) ListEntriesForReplay(ctx context.Context, accountID int64) ([]Entry, error) {
	query := entrySelect + `
		WHERE account_id = $1
		ORDER BY entry_date ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntries(rows)
}

// UpdateEntry applies the given column updates.
func (r *Repository) UpdateEntry(ctx context.Context, id int64, updates map[string]any) error {
	query, args := buildUpdate("entries", id, updates)
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// DeleteEntry removes an entry.
func (r *Repository) DeleteEntry(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// --- Helpers ---

const entrySelect = `
		SELECT id, account_id, entry_date, kind, amount, description, reference_kind, reference_id, created_at, updated_at
		FROM entries`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var account Account
	var openingBalance pgtype.Numeric

	err := row.Scan(
		&account.ID, &account.Name, &account.Type, &account.Currency,
		&openingBalance, &account.Description, &account.IsActive,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.OpeningBalance = db.NumericToDecimal(openingBalance)
	return &account, nil
}

func scanEntry(row rowScanner) (*Entry, error) {
	var entry Entry
	var amount pgtype.Numeric
	var referenceKind, referenceID pgtype.Text

	err := row.Scan(
		&entry.ID, &entry.AccountID, &entry.EntryDate, &entry.Kind,
		&amount, &entry.Description, &referenceKind, &referenceID,
		&entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Amount = db.NumericToDecimal(amount)
	if referenceKind.Valid {
		entry.ReferenceKind = ReferenceKind(referenceKind.String)
	}
	if referenceID.Valid {
		entry.ReferenceID = referenceID.String
	}
	return &entry, nil
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// buildUpdate composes a partial UPDATE statement with numbered arguments.
// Keys are sorted so the generated SQL is deterministic.
func buildUpdate(table string, id int64, updates map[string]any) (string, []any) {
	keys := make([]string, 0, len(updates))
	for key, value := range updates {
		if d, ok := value.(decimal.Decimal); ok {
			updates[key] = db.DecimalToNumeric(d)
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	query := `UPDATE ` + table + ` SET updated_at = NOW()`
	args := []any{id}
	argNum := 2
	for _, key := range keys {
		query += fmt.Sprintf(", %s = $%d", key, argNum)
		args = append(args, updates[key])
		argNum++
	}
	query += ` WHERE id = $1`
	return query, args
}
