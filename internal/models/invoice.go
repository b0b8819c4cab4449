package models

import (
	"time"
)

// InvoiceStatus representa el estado de una factura local
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Invoice representa una factura local, una por fila procesada
type Invoice struct {
	ID             int64         `json:"id" db:"id"`
	ImportRowID    int64         `json:"import_row_id" db:"import_row_id"`
	TotalCents     int64         `json:"total_cents" db:"total_cents"`
	Currency       string        `json:"currency" db:"currency"`
	VismaInvoiceID *string       `json:"visma_invoice_id" db:"visma_invoice_id"`
	Status         InvoiceStatus `json:"status" db:"status"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
}

// InvoiceListItem es una factura con los datos de su fila e importación
type InvoiceListItem struct {
	Invoice
	Referanse *string `json:"referanse"`
	Mottaker  *string `json:"mottaker"`
	Filename  *string `json:"filename"`
}

// InvoiceDetails agrega el detalle remoto a una factura local
type InvoiceDetails struct {
	InvoiceListItem
	VismaDetails *VismaInvoice `json:"visma_details"`
}

// ProcessImportRequest representa el cuerpo de POST /invoices/process-import
type ProcessImportRequest struct {
	ImportID   int64   `json:"import_id" binding:"required"`
	PresetCode *string `json:"preset_code"`
}

// ProcessImportResponse resume un pase del orquestador
type ProcessImportResponse struct {
	Message   string   `json:"message"`
	Processed int      `json:"processed"`
	Total     int      `json:"total"`
	Errors    []string `json:"errors"`
}

// SendInvoiceResponse representa la respuesta de POST /invoices/:id/send
type SendInvoiceResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
