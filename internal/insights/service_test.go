package insights

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian-books/internal/invoicing"
)

type staticSource struct {
	facts []InvoiceFact
	calls int
}

func (s *staticSource) ListInvoiceFacts(ctx context.Context) ([]InvoiceFact, error) {
	s.calls++
	return s.facts, nil
}

func dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	require.NoError(t, err)
	return d
}

func fixedClock() time.Time {
	return time.Date(2026, time.August, 15, 12, 0, 0, 0, time.UTC)
}

func paidOn(t time.Time) *time.Time { return &t }

func TestGetStatsFoldsInvoices(t *testing.T) {
	now := fixedClock()
	source := &staticSource{facts: []InvoiceFact{
		{Status: invoicing.StatusPaid, Total: dec(t, "100.00"), PaymentDate: paidOn(now.AddDate(0, 0, -1))},
		{Status: invoicing.StatusPaid, Total: dec(t, "50.00"), PaymentDate: paidOn(now.AddDate(0, -1, 0))},
		{Status: invoicing.StatusSent, Total: dec(t, "75.00"), DueDate: now.AddDate(0, 0, 10)},
		{Status: invoicing.StatusDraft, Total: dec(t, "20.00")},
		{Status: invoicing.StatusCancelled, Total: dec(t, "99.00")},
	}}
	svc := NewService(source, nil)
	svc.WithNow(fixedClock)

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)

	require.Equal(t, 5, stats.TotalInvoices)
	require.Equal(t, 2, stats.PaidCount)
	require.Equal(t, 1, stats.PendingCount)
	require.Equal(t, 1, stats.DraftCount)
	require.Equal(t, 0, stats.OverdueCount)
	require.True(t, stats.TotalRevenue.Equal(dec(t, "150.00")))
	require.True(t, stats.MonthlyRevenue.Equal(dec(t, "100.00")))
	// 100 this month vs 50 last month
	require.True(t, stats.MonthlyGrowth.Equal(dec(t, "100.00")), "growth %s", stats.MonthlyGrowth)
}

func TestOverdueIsInferredFromSentPastDue(t *testing.T) {
	now := fixedClock()
	source := &staticSource{facts: []InvoiceFact{
		// stored status is SENT, not OVERDUE, yet it counts
		{Status: invoicing.StatusSent, Total: dec(t, "10.00"), DueDate: now.AddDate(0, 0, -1)},
		// stored OVERDUE without SENT does not enter the inferred count
		{Status: invoicing.StatusOverdue, Total: dec(t, "10.00"), DueDate: now.AddDate(0, 0, -30)},
	}}
	svc := NewService(source, nil)
	svc.WithNow(fixedClock)

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.OverdueCount)
	require.Equal(t, 1, stats.PendingCount)
}

func TestMonthlyRevenueIgnoresFutureDatedPayments(t *testing.T) {
	now := fixedClock()
	source := &staticSource{facts: []InvoiceFact{
		// payment_date is caller supplied and may land in a future month
		{Status: invoicing.StatusPaid, Total: dec(t, "500.00"), PaymentDate: paidOn(now.AddDate(0, 1, 0))},
		{Status: invoicing.StatusPaid, Total: dec(t, "30.00"), PaymentDate: paidOn(now)},
	}}
	svc := NewService(source, nil)
	svc.WithNow(fixedClock)

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	require.True(t, stats.TotalRevenue.Equal(dec(t, "530.00")))
	require.True(t, stats.MonthlyRevenue.Equal(dec(t, "30.00")), "monthly %s", stats.MonthlyRevenue)
	require.True(t, stats.MonthlyGrowth.Equal(dec(t, "100")))
}

func TestMonthlyGrowthPreviousMonthZero(t *testing.T) {
	now := fixedClock()

	t.Run("current positive yields 100", func(t *testing.T) {
		source := &staticSource{facts: []InvoiceFact{
			{Status: invoicing.StatusPaid, Total: dec(t, "40.00"), PaymentDate: paidOn(now)},
		}}
		svc := NewService(source, nil)
		svc.WithNow(fixedClock)

		stats, err := svc.GetStats(context.Background())
		require.NoError(t, err)
		require.True(t, stats.MonthlyGrowth.Equal(dec(t, "100")))
	})

	t.Run("current zero yields 0", func(t *testing.T) {
		source := &staticSource{facts: []InvoiceFact{
			{Status: invoicing.StatusPaid, Total: dec(t, "40.00"), PaymentDate: paidOn(now.AddDate(0, -3, 0))},
		}}
		svc := NewService(source, nil)
		svc.WithNow(fixedClock)

		stats, err := svc.GetStats(context.Background())
		require.NoError(t, err)
		require.True(t, stats.MonthlyGrowth.IsZero())
	})
}

func TestMonthlyGrowthNegative(t *testing.T) {
	now := fixedClock()
	source := &staticSource{facts: []InvoiceFact{
		{Status: invoicing.StatusPaid, Total: dec(t, "50.00"), PaymentDate: paidOn(now)},
		{Status: invoicing.StatusPaid, Total: dec(t, "200.00"), PaymentDate: paidOn(now.AddDate(0, -1, 0))},
	}}
	svc := NewService(source, nil)
	svc.WithNow(fixedClock)

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	require.True(t, stats.MonthlyGrowth.Equal(dec(t, "-75.00")), "growth %s", stats.MonthlyGrowth)
}

func TestGetStatsWithoutInvoices(t *testing.T) {
	svc := NewService(&staticSource{}, nil)
	svc.WithNow(fixedClock)

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	require.Zero(t, stats.TotalInvoices)
	require.True(t, stats.TotalRevenue.IsZero())
	require.True(t, stats.MonthlyGrowth.IsZero())
}
