package invoicing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian-books/internal/shared"
)

const dateLayout = "2006-01-02"

type lineRequest struct {
	Description string           `json:"description" validate:"required,max=500"`
	Quantity    int              `json:"quantity" validate:"required,gt=0"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	TaxRate     *decimal.Decimal `json:"tax_rate,omitempty"`
}

type createInvoiceRequest struct {
	ClientID       int64           `json:"client_id" validate:"required,gt=0"`
	ProjectID      *int64          `json:"project_id,omitempty"`
	IssueDate      string          `json:"issue_date" validate:"required"`
	Terms          string          `json:"terms" validate:"required"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Notes          string          `json:"notes,omitempty" validate:"max=2000"`
	Lines          []lineRequest   `json:"lines" validate:"required,min=1,dive"`
}

type updateInvoiceRequest struct {
	ClientID       *int64           `json:"client_id,omitempty" validate:"omitempty,gt=0"`
	ProjectID      *int64           `json:"project_id,omitempty"`
	IssueDate      *string          `json:"issue_date,omitempty"`
	DueDate        *string          `json:"due_date,omitempty"`
	Terms          *string          `json:"terms,omitempty"`
	TaxRate        *decimal.Decimal `json:"tax_rate,omitempty"`
	DiscountAmount *decimal.Decimal `json:"discount_amount,omitempty"`
	Notes          *string          `json:"notes,omitempty" validate:"omitempty,max=2000"`
	Lines          []lineRequest    `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
}

type updateStatusRequest struct {
	Status           string `json:"status" validate:"required"`
	PaymentDate      string `json:"payment_date,omitempty"`
	PaymentMethod    string `json:"payment_method,omitempty" validate:"max=100"`
	PaymentReference string `json:"payment_reference,omitempty" validate:"max=200"`
}

type lineResponse struct {
	ID          int64            `json:"id"`
	Position    int              `json:"position"`
	Description string           `json:"description"`
	Quantity    int              `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	TaxRate     *decimal.Decimal `json:"tax_rate,omitempty"`
	TotalPrice  decimal.Decimal  `json:"total_price"`
}

type invoiceResponse struct {
	ID               int64           `json:"id"`
	Number           string          `json:"number"`
	ClientID         int64           `json:"client_id"`
	ProjectID        *int64          `json:"project_id,omitempty"`
	IssueDate        string          `json:"issue_date"`
	DueDate          string          `json:"due_date"`
	Status           InvoiceStatus   `json:"status"`
	Terms            PaymentTerms    `json:"terms"`
	TaxRate          decimal.Decimal `json:"tax_rate"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	Total            decimal.Decimal `json:"total"`
	Notes            string          `json:"notes,omitempty"`
	PaymentDate      *string         `json:"payment_date,omitempty"`
	PaymentMethod    string          `json:"payment_method,omitempty"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	Lines            []lineResponse  `json:"lines,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type invoiceListResponse struct {
	Invoices   []invoiceResponse `json:"invoices"`
	Pagination shared.Pagination `json:"pagination"`
}

func toLineInputs(reqs []lineRequest) []LineInput {
	if reqs == nil {
		return nil
	}
	lines := make([]LineInput, 0, len(reqs))
	for _, req := range reqs {
		lines = append(lines, LineInput{
			Description: req.Description,
			Quantity:    req.Quantity,
			UnitPrice:   req.UnitPrice,
			TaxRate:     req.TaxRate,
		})
	}
	return lines
}

func toInvoiceResponse(invoice Invoice) invoiceResponse {
	out := invoiceResponse{
		ID:               invoice.ID,
		Number:           invoice.Number,
		ClientID:         invoice.ClientID,
		ProjectID:        invoice.ProjectID,
		IssueDate:        invoice.IssueDate.Format(dateLayout),
		DueDate:          invoice.DueDate.Format(dateLayout),
		Status:           invoice.Status,
		Terms:            invoice.Terms,
		TaxRate:          invoice.TaxRate,
		DiscountAmount:   invoice.DiscountAmount,
		Subtotal:         invoice.Subtotal,
		TaxAmount:        invoice.TaxAmount,
		Total:            invoice.Total,
		Notes:            invoice.Notes,
		PaymentMethod:    invoice.PaymentMethod,
		PaymentReference: invoice.PaymentReference,
		CreatedAt:        invoice.CreatedAt,
		UpdatedAt:        invoice.UpdatedAt,
	}
	if invoice.PaymentDate != nil {
		paid := invoice.PaymentDate.Format(dateLayout)
		out.PaymentDate = &paid
	}
	for _, line := range invoice.Lines {
		out.Lines = append(out.Lines, lineResponse{
			ID:          line.ID,
			Position:    line.Position,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TaxRate:     line.TaxRate,
			TotalPrice:  line.TotalPrice,
		})
	}
	return out
}
