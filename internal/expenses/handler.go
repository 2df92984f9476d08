package expenses

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-books/meridian-books/internal/platform/httpx"
)

// Handler manages hosting expense endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountRoutes registers hosting expense routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createExpense)
	r.Get("/", h.listExpenses)
	r.Get("/summary", h.summarizeExpenses)
	r.Get("/{id}", h.getExpense)
	r.Put("/{id}", h.updateExpense)
	r.Delete("/{id}", h.deleteExpense)
}

func (h *Handler) createExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	periodStart, err := time.Parse(dateLayout, req.PeriodStart)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "period_start must be YYYY-MM-DD")
		return
	}
	periodEnd, err := time.Parse(dateLayout, req.PeriodEnd)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "period_end must be YYYY-MM-DD")
		return
	}

	expense, err := h.service.Create(r.Context(), CreateExpenseInput{
		ProjectID:   req.ProjectID,
		Provider:    req.Provider,
		Category:    req.Category,
		Amount:      req.Amount,
		Currency:    req.Currency,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Status:      ExpenseStatus(req.Status),
		Notes:       req.Notes,
		ActorID:     actorID(r),
	})
	if err != nil {
		h.logger.Error("create expense", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toExpenseResponse(*expense))
}

func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	projectID, _ := strconv.ParseInt(r.URL.Query().Get("project_id"), 10, 64)

	items, pagination, err := h.service.List(r.Context(), ListFilter{
		ProjectID: projectID,
		Status:    ExpenseStatus(r.URL.Query().Get("status")),
		Provider:  r.URL.Query().Get("provider"),
		Page:      page,
		PerPage:   perPage,
	})
	if err != nil {
		h.logger.Error("list expenses", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	out := make([]expenseResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toExpenseResponse(item))
	}
	httpx.JSON(w, http.StatusOK, expenseListResponse{Expenses: out, Pagination: pagination})
}

func (h *Handler) summarizeExpenses(w http.ResponseWriter, r *http.Request) {
	projectID, _ := strconv.ParseInt(r.URL.Query().Get("project_id"), 10, 64)

	totals, err := h.service.Summary(r.Context(), ListFilter{
		ProjectID: projectID,
		Status:    ExpenseStatus(r.URL.Query().Get("status")),
		Provider:  r.URL.Query().Get("provider"),
	})
	if err != nil {
		h.logger.Error("summarize expenses", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"totals_by_status": totals})
}

func (h *Handler) getExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	expense, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toExpenseResponse(*expense))
}

func (h *Handler) updateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateExpenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := UpdateExpenseInput{
		ProjectID: req.ProjectID,
		Provider:  req.Provider,
		Category:  req.Category,
		Amount:    req.Amount,
		Notes:     req.Notes,
		ActorID:   actorID(r),
	}
	if req.PeriodStart != nil {
		periodStart, err := time.Parse(dateLayout, *req.PeriodStart)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "period_start must be YYYY-MM-DD")
			return
		}
		input.PeriodStart = &periodStart
	}
	if req.PeriodEnd != nil {
		periodEnd, err := time.Parse(dateLayout, *req.PeriodEnd)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "period_end must be YYYY-MM-DD")
			return
		}
		input.PeriodEnd = &periodEnd
	}
	if req.Status != nil {
		status := ExpenseStatus(*req.Status)
		input.Status = &status
	}

	expense, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.logger.Error("update expense", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toExpenseResponse(*expense))
}

func (h *Handler) deleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id, actorID(r)); err != nil {
		h.logger.Error("delete expense", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "path id must be a positive integer")
		return 0, false
	}
	return id, true
}

func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
