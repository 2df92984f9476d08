package insights

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/meridian-books/meridian-books/internal/invoicing"
)

// InvoiceFact is the slice of one invoice the aggregator folds over.
type InvoiceFact struct {
	Status      invoicing.InvoiceStatus
	Total       decimal.Decimal
	DueDate     time.Time
	PaymentDate *time.Time
}

// SourcePort reads invoice facts for aggregation.
type SourcePort interface {
	ListInvoiceFacts(ctx context.Context) ([]InvoiceFact, error)
}

// Stats is the cross-invoice projection. Every figure is derived fresh from
// invoice rows; nothing here is persisted.
type Stats struct {
	TotalInvoices  int             `json:"total_invoices"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	PaidCount      int             `json:"paid_count"`
	PendingCount   int             `json:"pending_count"`
	DraftCount     int             `json:"draft_count"`
	OverdueCount   int             `json:"overdue_count"`
	MonthlyRevenue decimal.Decimal `json:"monthly_revenue"`
	MonthlyGrowth  decimal.Decimal `json:"monthly_growth"`
}

// Service derives invoice statistics on demand, behind a versioned cache
// and a singleflight group so a stampede computes the fold once.
type Service struct {
	source SourcePort
	cache  *Cache
	group  singleflight.Group
	now    func() time.Time
}

// NewService constructs the insights service. cache may be nil.
func NewService(source SourcePort, cache *Cache) *Service {
	return &Service{source: source, cache: cache, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Invalidate bumps the cache version after invoice writes.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// GetStats returns the aggregate projection, from cache when fresh.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	key, err := s.cache.BuildKey(ctx, "insights", "invoice_stats")
	if err != nil {
		return nil, fmt.Errorf("stats cache key: %w", err)
	}
	value, err, _ := s.group.Do(key, func() (any, error) {
		var stats Stats
		err := s.cache.FetchJSON(ctx, key, &stats, func(ctx context.Context) (any, error) {
			return s.computeStats(ctx)
		})
		if err != nil {
			return nil, err
		}
		return &stats, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*Stats), nil
}

// computeStats folds once over every invoice row.
//
// Overdue here is inferred: an invoice counted overdue is SENT with its due
// date in the past, regardless of whether an operator ever stored an OVERDUE
// status. The two signals are reported through different surfaces on purpose.
func (s *Service) computeStats(ctx context.Context) (*Stats, error) {
	facts, err := s.source.ListInvoiceFacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list invoice facts: %w", err)
	}

	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)
	prevStart := monthStart.AddDate(0, -1, 0)

	stats := Stats{
		TotalRevenue:   decimal.Zero,
		MonthlyRevenue: decimal.Zero,
		MonthlyGrowth:  decimal.Zero,
	}
	prevRevenue := decimal.Zero

	for _, fact := range facts {
		stats.TotalInvoices++
		switch fact.Status {
		case invoicing.StatusPaid:
			stats.PaidCount++
			stats.TotalRevenue = stats.TotalRevenue.Add(fact.Total)
			if fact.PaymentDate == nil {
				continue
			}
			paidAt := *fact.PaymentDate
			switch {
			case !paidAt.Before(monthStart) && paidAt.Before(monthEnd):
				stats.MonthlyRevenue = stats.MonthlyRevenue.Add(fact.Total)
			case !paidAt.Before(prevStart) && paidAt.Before(monthStart):
				prevRevenue = prevRevenue.Add(fact.Total)
			}
		case invoicing.StatusSent:
			stats.PendingCount++
			if fact.DueDate.Before(now) {
				stats.OverdueCount++
			}
		case invoicing.StatusDraft:
			stats.DraftCount++
		}
	}

	stats.MonthlyGrowth = growth(stats.MonthlyRevenue, prevRevenue)
	return &stats, nil
}

var hundred = decimal.NewFromInt(100)

// growth is the month-over-month percentage change. A zero previous month
// yields 100% when the current month earned anything, otherwise 0%.
func growth(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		if current.IsPositive() {
			return hundred
		}
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(hundred).Round(2)
}
