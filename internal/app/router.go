package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-books/meridian-books/internal/expenses"
	"github.com/meridian-books/meridian-books/internal/insights"
	"github.com/meridian-books/meridian-books/internal/invoicing"
	"github.com/meridian-books/meridian-books/internal/ledger"
	"github.com/meridian-books/meridian-books/internal/observability"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	LedgerHandler   *ledger.Handler
	InvoiceHandler  *invoicing.Handler
	InsightsHandler *insights.Handler
	ExpenseHandler  *expenses.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.LedgerHandler != nil {
		params.LedgerHandler.MountRoutes(r)
	}
	if params.InvoiceHandler != nil {
		r.Route("/invoices", func(r chi.Router) {
			// stats sits under /invoices but is served by insights
			if params.InsightsHandler != nil {
				params.InsightsHandler.MountRoutes(r)
			}
			params.InvoiceHandler.MountRoutes(r)
		})
	}
	if params.ExpenseHandler != nil {
		r.Route("/expenses", func(r chi.Router) {
			params.ExpenseHandler.MountRoutes(r)
		})
	}

	return r
}
