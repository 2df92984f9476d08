package invoicing

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian-books/internal/platform/httpx"
)

type memoryInvoiceRepo struct {
	invoices   map[int64]*Invoice
	nextID     int64
	nextNumber int64
}

func newMemoryInvoiceRepo() *memoryInvoiceRepo {
	return &memoryInvoiceRepo{invoices: make(map[int64]*Invoice)}
}

func (r *memoryInvoiceRepo) CreateInvoice(ctx context.Context, invoice Invoice) (*Invoice, error) {
	r.nextID++
	r.nextNumber++
	invoice.ID = r.nextID
	invoice.Number = fmt.Sprintf("INV-%06d", r.nextNumber)
	invoice.CreatedAt = time.Now()
	invoice.UpdatedAt = invoice.CreatedAt
	for i := range invoice.Lines {
		invoice.Lines[i].ID = int64(i + 1)
		invoice.Lines[i].InvoiceID = invoice.ID
	}
	stored := invoice
	r.invoices[invoice.ID] = &stored
	return &invoice, nil
}

func (r *memoryInvoiceRepo) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	invoice, ok := r.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	copied := *invoice
	copied.Lines = append([]InvoiceLine(nil), invoice.Lines...)
	return &copied, nil
}

func (r *memoryInvoiceRepo) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	var all []Invoice
	for _, invoice := range r.invoices {
		if filter.Status != "" && invoice.Status != filter.Status {
			continue
		}
		if filter.ClientID > 0 && invoice.ClientID != filter.ClientID {
			continue
		}
		all = append(all, *invoice)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	offset := (filter.Page - 1) * filter.PerPage
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if filter.PerPage > 0 && filter.PerPage < len(all) {
		all = all[:filter.PerPage]
	}
	return all, total, nil
}

func (r *memoryInvoiceRepo) UpdateInvoice(ctx context.Context, id int64, updates map[string]any, lines []InvoiceLine) error {
	invoice, ok := r.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	for key, value := range updates {
		switch key {
		case "client_id":
			invoice.ClientID = value.(int64)
		case "status":
			invoice.Status = InvoiceStatus(value.(string))
		case "terms":
			invoice.Terms = PaymentTerms(value.(string))
		case "issue_date":
			invoice.IssueDate = value.(time.Time)
		case "due_date":
			invoice.DueDate = value.(time.Time)
		case "tax_rate":
			invoice.TaxRate = value.(decimal.Decimal)
		case "discount_amount":
			invoice.DiscountAmount = value.(decimal.Decimal)
		case "subtotal":
			invoice.Subtotal = value.(decimal.Decimal)
		case "tax_amount":
			invoice.TaxAmount = value.(decimal.Decimal)
		case "total":
			invoice.Total = value.(decimal.Decimal)
		case "notes":
			invoice.Notes = value.(string)
		case "payment_date":
			paidAt := value.(time.Time)
			invoice.PaymentDate = &paidAt
		case "payment_method":
			invoice.PaymentMethod = value.(string)
		case "payment_reference":
			invoice.PaymentReference = value.(string)
		}
	}
	if lines != nil {
		invoice.Lines = lines
	}
	return nil
}

func (r *memoryInvoiceRepo) DeleteInvoice(ctx context.Context, id int64) error {
	if _, ok := r.invoices[id]; !ok {
		return ErrInvoiceNotFound
	}
	delete(r.invoices, id)
	return nil
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(ctx context.Context) error {
	c.calls++
	return nil
}

func newTestInvoice(t *testing.T, svc *Service) *Invoice {
	t.Helper()
	invoice, err := svc.Create(context.Background(), CreateInvoiceInput{
		ClientID:  7,
		IssueDate: time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC),
		Terms:     TermsNet30,
		TaxRate:   dec(t, "10"),
		Lines: []LineInput{
			{Description: "Design", Quantity: 2, UnitPrice: dec(t, "50.00")},
			{Description: "Hosting", Quantity: 1, UnitPrice: dec(t, "30.00")},
		},
	})
	require.NoError(t, err)
	return invoice
}

func TestCreateDerivesTotalsAndDueDate(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	svc := NewService(repo, nil, nil)

	invoice := newTestInvoice(t, svc)

	require.Equal(t, StatusDraft, invoice.Status)
	require.Equal(t, "INV-000001", invoice.Number)
	require.True(t, invoice.Subtotal.Equal(dec(t, "130.00")))
	require.True(t, invoice.TaxAmount.Equal(dec(t, "13.00")))
	require.True(t, invoice.Total.Equal(dec(t, "143.00")))
	require.Equal(t, time.Date(2026, time.July, 31, 0, 0, 0, 0, time.UTC), invoice.DueDate)
	require.Len(t, invoice.Lines, 2)
	require.True(t, invoice.Lines[0].TotalPrice.Equal(dec(t, "100.00")))
}

func TestCreateRejectsEmptyLines(t *testing.T) {
	svc := NewService(newMemoryInvoiceRepo(), nil, nil)

	_, err := svc.Create(context.Background(), CreateInvoiceInput{
		ClientID:  7,
		IssueDate: time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC),
		Terms:     TermsNet30,
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUpdateRecomputesTotals(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryInvoiceRepo()
	svc := NewService(repo, nil, nil)

	invoice := newTestInvoice(t, svc)

	discount := dec(t, "5.00")
	updated, err := svc.Update(ctx, invoice.ID, UpdateInvoiceInput{DiscountAmount: &discount})
	require.NoError(t, err)
	require.True(t, updated.Total.Equal(dec(t, "138.00")), "total %s", updated.Total)
	// subtotal and tax untouched by a discount-only change
	require.True(t, updated.Subtotal.Equal(dec(t, "130.00")))
	require.True(t, updated.TaxAmount.Equal(dec(t, "13.00")))
}

func TestUpdateReplacesLinesAtomically(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryInvoiceRepo()
	svc := NewService(repo, nil, nil)

	invoice := newTestInvoice(t, svc)

	updated, err := svc.Update(ctx, invoice.ID, UpdateInvoiceInput{
		Lines: []LineInput{{Description: "Flat fee", Quantity: 1, UnitPrice: dec(t, "200.00")}},
	})
	require.NoError(t, err)
	require.Len(t, updated.Lines, 1)
	require.True(t, updated.Subtotal.Equal(dec(t, "200.00")))
	require.True(t, updated.TaxAmount.Equal(dec(t, "20.00")))
	require.True(t, updated.Total.Equal(dec(t, "220.00")))
}

func TestUpdateRejectsExplicitEmptyLineSet(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryInvoiceRepo()
	svc := NewService(repo, nil, nil)

	invoice := newTestInvoice(t, svc)

	_, err := svc.Update(ctx, invoice.ID, UpdateInvoiceInput{Lines: []LineInput{}})
	require.ErrorIs(t, err, httpx.ErrValidation)

	// the stored invoice keeps its lines and totals
	current, err := svc.Get(ctx, invoice.ID)
	require.NoError(t, err)
	require.Len(t, current.Lines, 2)
	require.True(t, current.Total.Equal(dec(t, "143.00")))
}

func TestPaidInvoiceIsImmutable(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryInvoiceRepo()
	svc := NewService(repo, nil, nil)

	invoice := newTestInvoice(t, svc)
	_, err := svc.UpdateStatus(ctx, invoice.ID, UpdateStatusInput{Status: StatusPaid, PaymentMethod: "wire"})
	require.NoError(t, err)

	notes := "late edit"
	_, err = svc.Update(ctx, invoice.ID, UpdateInvoiceInput{Notes: &notes})
	require.ErrorIs(t, err, ErrInvoicePaid)

	err = svc.Delete(ctx, invoice.ID, 0)
	require.ErrorIs(t, err, ErrInvoicePaid)

	// the failed attempts must not have touched the stored row
	stored, err := svc.Get(ctx, invoice.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, stored.Status)
	require.Empty(t, stored.Notes)
	require.NotNil(t, stored.PaymentDate)
	require.Equal(t, "wire", stored.PaymentMethod)
}

func TestSendOnlyFromDraft(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryInvoiceRepo()
	svc := NewService(repo, nil, nil)

	invoice := newTestInvoice(t, svc)

	sent, err := svc.Send(ctx, invoice.ID, 0)
	require.NoError(t, err)
	require.Equal(t, StatusSent, sent.Status)

	_, err = svc.Send(ctx, invoice.ID, 0)
	require.ErrorIs(t, err, httpx.ErrInvalidTransition)
}

func TestPaidIsTerminal(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryInvoiceRepo()
	svc := NewService(repo, nil, nil)

	invoice := newTestInvoice(t, svc)
	_, err := svc.UpdateStatus(ctx, invoice.ID, UpdateStatusInput{Status: StatusPaid})
	require.NoError(t, err)

	for _, target := range []InvoiceStatus{StatusDraft, StatusSent, StatusPaid, StatusOverdue, StatusCancelled} {
		_, err := svc.UpdateStatus(ctx, invoice.ID, UpdateStatusInput{Status: target})
		require.ErrorIs(t, err, httpx.ErrInvalidTransition, "target %s", target)
	}
}

func TestDraftIsNeverATransitionTarget(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryInvoiceRepo()
	svc := NewService(repo, nil, nil)

	invoice := newTestInvoice(t, svc)
	_, err := svc.UpdateStatus(ctx, invoice.ID, UpdateStatusInput{Status: StatusCancelled})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, invoice.ID, UpdateStatusInput{Status: StatusDraft})
	require.ErrorIs(t, err, httpx.ErrInvalidTransition)

	current, err := svc.Get(ctx, invoice.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, current.Status)
}

func TestMarkPaidStampsPaymentMetadata(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryInvoiceRepo()
	svc := NewService(repo, nil, nil)
	fixed := time.Date(2026, time.August, 15, 12, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return fixed })

	invoice := newTestInvoice(t, svc)
	paid, err := svc.UpdateStatus(ctx, invoice.ID, UpdateStatusInput{
		Status:           StatusPaid,
		PaymentMethod:    "bank_transfer",
		PaymentReference: "TRX-99",
	})
	require.NoError(t, err)
	require.NotNil(t, paid.PaymentDate)
	require.Equal(t, fixed, *paid.PaymentDate)
	require.Equal(t, "bank_transfer", paid.PaymentMethod)
	require.Equal(t, "TRX-99", paid.PaymentReference)
}

func TestDuplicateResetsLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryInvoiceRepo()
	svc := NewService(repo, nil, nil)

	invoice := newTestInvoice(t, svc)
	_, err := svc.UpdateStatus(ctx, invoice.ID, UpdateStatusInput{Status: StatusPaid, PaymentMethod: "wire"})
	require.NoError(t, err)

	clone, err := svc.Duplicate(ctx, invoice.ID, 0)
	require.NoError(t, err)

	require.NotEqual(t, invoice.ID, clone.ID)
	require.NotEqual(t, invoice.Number, clone.Number)
	require.Equal(t, StatusDraft, clone.Status)
	require.Nil(t, clone.PaymentDate)
	require.Empty(t, clone.PaymentMethod)
	require.Empty(t, clone.PaymentReference)

	source, err := svc.Get(ctx, invoice.ID)
	require.NoError(t, err)
	require.Len(t, clone.Lines, len(source.Lines))
	for i := range clone.Lines {
		require.Equal(t, source.Lines[i].Description, clone.Lines[i].Description)
		require.Equal(t, source.Lines[i].Quantity, clone.Lines[i].Quantity)
		require.True(t, source.Lines[i].UnitPrice.Equal(clone.Lines[i].UnitPrice))
		require.True(t, source.Lines[i].TotalPrice.Equal(clone.Lines[i].TotalPrice))
	}
	require.True(t, source.Total.Equal(clone.Total))
}

func TestDuplicateIssueDateIsLocalMidnight(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryInvoiceRepo()
	svc := NewService(repo, nil, nil)
	zone := time.FixedZone("UTC+10", 10*60*60)
	svc.WithNow(func() time.Time { return time.Date(2026, time.August, 15, 2, 30, 0, 0, zone) })

	invoice := newTestInvoice(t, svc)
	clone, err := svc.Duplicate(ctx, invoice.ID, 0)
	require.NoError(t, err)

	want := time.Date(2026, time.August, 15, 0, 0, 0, 0, zone)
	require.True(t, clone.IssueDate.Equal(want), "issue date %s", clone.IssueDate)
	require.True(t, clone.DueDate.Equal(want.AddDate(0, 0, TermsNet30.DueDays())))
}

func TestListFiltersByStatusAndClient(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryInvoiceRepo()
	svc := NewService(repo, nil, nil)

	first := newTestInvoice(t, svc)
	newTestInvoice(t, svc)
	_, err := svc.Send(ctx, first.ID, 0)
	require.NoError(t, err)

	sent, pagination, err := svc.List(ctx, ListFilter{Status: StatusSent})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	require.Equal(t, first.ID, sent[0].ID)
	require.Equal(t, 1, pagination.Total)

	none, _, err := svc.List(ctx, ListFilter{ClientID: 999})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestWritesInvalidateStatsCache(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryInvoiceRepo()
	invalidator := &countingInvalidator{}
	svc := NewService(repo, nil, invalidator)

	invoice := newTestInvoice(t, svc)
	require.Equal(t, 1, invalidator.calls)

	_, err := svc.Send(ctx, invoice.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 2, invalidator.calls)

	require.NoError(t, svc.Delete(ctx, invoice.ID, 0))
	require.Equal(t, 3, invalidator.calls)
}
