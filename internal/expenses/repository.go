package expenses

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

// Repository provides PostgreSQL backed persistence for hosting expenses.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateExpense inserts a new hosting expense.
func (r *Repository) CreateExpense(ctx context.Context, expense HostingExpense) (*HostingExpense, error) {
	query := `
		INSERT INTO hosting_expenses (project_id, provider, category, amount, currency, period_start, period_end, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		expense.ProjectID,
		expense.Provider,
		expense.Category,
		db.DecimalToNumeric(expense.Amount),
		expense.Currency,
		expense.PeriodStart,
		expense.PeriodEnd,
		string(expense.Status),
		expense.Notes,
	).Scan(&expense.ID, &expense.CreatedAt, &expense.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

// GetExpense retrieves a hosting expense by ID.
func (r *Repository) GetExpense(ctx context.Context, id int64) (*HostingExpense, error) {
	expense, err := scanExpense(r.pool.QueryRow(ctx, expenseSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrExpenseNotFound
	}
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// ListExpenses returns one page of expenses matching the filter, newest
// first. Provider matches on substring, case insensitive.
func (r *Repository) ListExpenses(ctx context.Context, filter ListFilter) ([]HostingExpense, int, error) {
	where := ""
	args := []any{}
	argNum := 1
	if filter.ProjectID > 0 {
		where += fmt.Sprintf(" AND project_id = $%d", argNum)
		args = append(args, filter.ProjectID)
		argNum++
	}
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filter.Status))
		argNum++
	}
	if filter.Provider != "" {
		where += fmt.Sprintf(" AND provider ILIKE $%d", argNum)
		args = append(args, "%"+filter.Provider+"%")
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM hosting_expenses WHERE TRUE`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := expenseSelect + ` WHERE TRUE` + where +
		fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, argNum, argNum+1)
	args = append(args, filter.PerPage, (filter.Page-1)*filter.PerPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var expenses []HostingExpense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, 0, err
		}
		expenses = append(expenses, *expense)
	}
	return expenses, total, rows.Err()
}

// SumByStatus sums expense amounts grouped by status for the given filter.
func (r *Repository) SumByStatus(ctx context.Context, filter ListFilter) (map[ExpenseStatus]decimal.Decimal, error) {
	where := ""
	args := []any{}
	argNum := 1
	if filter.ProjectID > 0 {
		where += fmt.Sprintf(" AND project_id = $%d", argNum)
		args = append(args, filter.ProjectID)
		argNum++
	}
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filter.Status))
		argNum++
	}
	if filter.Provider != "" {
		where += fmt.Sprintf(" AND provider ILIKE $%d", argNum)
		args = append(args, "%"+filter.Provider+"%")
	}

	query := `SELECT status, COALESCE(SUM(amount), 0) FROM hosting_expenses WHERE TRUE` +
		where + ` GROUP BY status`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[ExpenseStatus]decimal.Decimal)
	for rows.Next() {
		var status string
		var sum pgtype.Numeric
		if err := rows.Scan(&status, &sum); err != nil {
			return nil, err
		}
		totals[ExpenseStatus(status)] = db.NumericToDecimal(sum)
	}
	return totals, rows.Err()
}

// UpdateExpense applies the given column updates.
func (r *Repository) UpdateExpense(ctx context.Context, id int64, updates map[string]any) error {
	query, args := buildUpdate("hosting_expenses", id, updates)
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrExpenseNotFound
	}
	return nil
}

// DeleteExpense removes a hosting expense.
func (r *Repository) DeleteExpense(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM hosting_expenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrExpenseNotFound
	}
	return nil
}

// --- Helpers ---

const expenseSelect = `
		SELECT id, project_id, provider, category, amount, currency, period_start, period_end, status, notes, created_at, updated_at
		FROM hosting_expenses`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*HostingExpense, error) {
	var expense HostingExpense
	var projectID pgtype.Int8
	var amount pgtype.Numeric

	err := row.Scan(
		&expense.ID, &projectID, &expense.Provider, &expense.Category,
		&amount, &expense.Currency, &expense.PeriodStart, &expense.PeriodEnd,
		&expense.Status, &expense.Notes, &expense.CreatedAt, &expense.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if projectID.Valid {
		expense.ProjectID = &projectID.Int64
	}
	expense.Amount = db.NumericToDecimal(amount)
	return &expense, nil
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
