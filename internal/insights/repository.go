package insights

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-books/meridian-books/internal/invoicing"
	"github.com/meridian-books/meridian-books/internal/platform/db"
)

// Repository reads invoice facts straight from the invoices table. It never
// writes; the projection stays consistent because it re-reads on every call.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListInvoiceFacts returns the minimal per-invoice columns the fold needs.
func (r *Repository) ListInvoiceFacts(ctx context.Context) ([]InvoiceFact, error) {
	query := `SELECT status, total, due_date, payment_date FROM invoices`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []InvoiceFact
	for rows.Next() {
		var fact InvoiceFact
		var status string
		var total pgtype.Numeric
		var paymentDate pgtype.Timestamptz

		if err := rows.Scan(&status, &total, &fact.DueDate, &paymentDate); err != nil {
			return nil, err
		}
		fact.Status = invoicing.InvoiceStatus(status)
		fact.Total = db.NumericToDecimal(total)
		if paymentDate.Valid {
			fact.PaymentDate = &paymentDate.Time
		}
		facts = append(facts, fact)
	}
	return facts, rows.Err()
}
