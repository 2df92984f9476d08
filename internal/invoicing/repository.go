package invoicing

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian-books/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for invoices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const uniqueViolation = "23505"

// numberAttempts bounds the retry loop on invoice number collisions. The
// sequence makes collisions near impossible, the retry covers manual inserts.
const numberAttempts = 3

// CreateInvoice inserts the invoice and its lines in one transaction,
// drawing the invoice number from the invoice_numbers sequence. A unique
// index on the number backs a short retry loop.
func (r *Repository) CreateInvoice(ctx context.Context, invoice Invoice) (*Invoice, error) {
	var created *Invoice
	for attempt := 0; attempt < numberAttempts; attempt++ {
		err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
			var seq int64
			if err := tx.QueryRow(ctx, `SELECT nextval('invoice_numbers')`).Scan(&seq); err != nil {
				return fmt.Errorf("next invoice number: %w", err)
			}
			invoice.Number = fmt.Sprintf("INV-%06d", seq)

			query := `
				INSERT INTO invoices (number, client_id, project_id, issue_date, due_date, status, terms,
					tax_rate, discount_amount, subtotal, tax_amount, total, notes, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
				RETURNING id, created_at, updated_at`

			err := tx.QueryRow(ctx, query,
				invoice.Number,
				invoice.ClientID,
				invoice.ProjectID,
				invoice.IssueDate,
				invoice.DueDate,
				string(invoice.Status),
				string(invoice.Terms),
				db.DecimalToNumeric(invoice.TaxRate),
				db.DecimalToNumeric(invoice.DiscountAmount),
				db.DecimalToNumeric(invoice.Subtotal),
				db.DecimalToNumeric(invoice.TaxAmount),
				db.DecimalToNumeric(invoice.Total),
				invoice.Notes,
			).Scan(&invoice.ID, &invoice.CreatedAt, &invoice.UpdatedAt)
			if err != nil {
				return err
			}
			return insertLines(ctx, tx, invoice.ID, invoice.Lines)
		})
		if err == nil {
			created = &invoice
			break
		}
		if isUniqueViolation(err) {
			continue
		}
		return nil, err
	}
	if created == nil {
		return nil, ErrNumberConflict
	}
	for i := range created.Lines {
		created.Lines[i].InvoiceID = created.ID
	}
	return created, nil
}

// GetInvoice retrieves an invoice with its lines in position order.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	invoice, err := scanInvoice(r.pool.QueryRow(ctx, invoiceSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, lineSelect+` WHERE invoice_id = $1 ORDER BY position, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		invoice.Lines = append(invoice.Lines, *line)
	}
	return invoice, rows.Err()
}

// ListInvoices returns one page of invoices, newest first, without lines.
func (r *Repository) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	where := ""
	args := []any{}
	argNum := 1
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filter.Status))
		argNum++
	}
	if filter.ClientID > 0 {
		where += fmt.Sprintf(" AND client_id = $%d", argNum)
		args = append(args, filter.ClientID)
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE TRUE`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := invoiceSelect + ` WHERE TRUE` + where +
		fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, argNum, argNum+1)
	args = append(args, filter.PerPage, (filter.Page-1)*filter.PerPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, *invoice)
	}
	return invoices, total, rows.Err()
}

// UpdateInvoice applies column updates and, when lines is non-nil, replaces
// the full line set in the same transaction so readers never see a half
// replaced invoice.
func (r *Repository) UpdateInvoice(ctx context.Context, id int64, updates map[string]any, lines []InvoiceLine) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if len(updates) > 0 {
			query, args := buildUpdate("invoices", id, updates)
			result, err := tx.Exec(ctx, query, args...)
			if err != nil {
				return err
			}
			if result.RowsAffected() == 0 {
				return ErrInvoiceNotFound
			}
		}
		if lines != nil {
			if _, err := tx.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, id); err != nil {
				return err
			}
			if err := insertLines(ctx, tx, id, lines); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteInvoice removes an invoice; lines go with it via cascade.
func (r *Repository) DeleteInvoice(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// --- Helpers ---

const invoiceSelect = `
		SELECT id, number, client_id, project_id, issue_date, due_date, status, terms,
			tax_rate, discount_amount, subtotal, tax_amount, total, notes,
			payment_date, payment_method, payment_reference, created_at, updated_at
		FROM invoices`

const lineSelect = `
		SELECT id, invoice_id, position, description, quantity, unit_price, tax_rate, total_price
		FROM invoice_lines`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*Invoice, error) {
	var invoice Invoice
	var projectID pgtype.Int8
	var taxRate, discount, subtotal, taxAmount, total pgtype.Numeric
	var paymentDate pgtype.Timestamptz
	var paymentMethod, paymentReference pgtype.Text

	err := row.Scan(
		&invoice.ID, &invoice.Number, &invoice.ClientID, &projectID,
		&invoice.IssueDate, &invoice.DueDate, &invoice.Status, &invoice.Terms,
		&taxRate, &discount, &subtotal, &taxAmount, &total, &invoice.Notes,
		&paymentDate, &paymentMethod, &paymentReference,
		&invoice.CreatedAt, &invoice.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if projectID.Valid {
		invoice.ProjectID = &projectID.Int64
	}
	invoice.TaxRate = db.NumericToDecimal(taxRate)
	invoice.DiscountAmount = db.NumericToDecimal(discount)
	invoice.Subtotal = db.NumericToDecimal(subtotal)
	invoice.TaxAmount = db.NumericToDecimal(taxAmount)
	invoice.Total = db.NumericToDecimal(total)
	if paymentDate.Valid {
		invoice.PaymentDate = &paymentDate.Time
	}
	invoice.PaymentMethod = paymentMethod.String
	invoice.PaymentReference = paymentReference.String
	return &invoice, nil
}

func scanLine(row rowScanner) (*InvoiceLine, error) {
	var line InvoiceLine
	var unitPrice, totalPrice pgtype.Numeric
	var taxRate pgtype.Numeric

	err := row.Scan(
		&line.ID, &line.InvoiceID, &line.Position, &line.Description,
		&line.Quantity, &unitPrice, &taxRate, &totalPrice,
	)
	if err != nil {
		return nil, err
	}

	line.UnitPrice = db.NumericToDecimal(unitPrice)
	if taxRate.Valid {
		rate := db.NumericToDecimal(taxRate)
		line.TaxRate = &rate
	}
	line.TotalPrice = db.NumericToDecimal(totalPrice)
	return &line, nil
}

func insertLines(ctx context.Context, tx pgx.Tx, invoiceID int64, lines []InvoiceLine) error {
	query := `
		INSERT INTO invoice_lines (invoice_id, position, description, quantity, unit_price, tax_rate, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	for i := range lines {
		var taxRate pgtype.Numeric
		if lines[i].TaxRate != nil {
			taxRate = db.DecimalToNumeric(*lines[i].TaxRate)
		}
		err := tx.QueryRow(ctx, query,
			invoiceID,
			lines[i].Position,
			lines[i].Description,
			lines[i].Quantity,
			db.DecimalToNumeric(lines[i].UnitPrice),
			taxRate,
			db.DecimalToNumeric(lines[i].TotalPrice),
		).Scan(&lines[i].ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
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
