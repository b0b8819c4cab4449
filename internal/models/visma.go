package models

// VismaCustomer representa un cliente en el proveedor contable
type VismaCustomer struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	OrganizationNumber *string `json:"organizationNumber,omitempty"`
	Email              *string `json:"email,omitempty"`
}

// VismaInvoiceRow es una línea de una factura remota
type VismaInvoiceRow struct {
	ProductCode *string `json:"productCode,omitempty"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	VatPercent  int     `json:"vatPercent"`
}

// VismaInvoice representa una factura en el proveedor contable
type VismaInvoice struct {
	ID             string            `json:"id"`
	CustomerNumber string            `json:"customerNumber"`
	InvoiceNumber  string            `json:"invoiceNumber"`
	DueDate        string            `json:"dueDate"`
	TotalAmount    float64           `json:"totalAmount"`
	Currency       string            `json:"currency"`
	Status         string            `json:"status"`
	Rows           []VismaInvoiceRow `json:"rows"`
}

// DraftInvoiceRequest es el cuerpo de creación de un borrador remoto
type DraftInvoiceRequest struct {
	CustomerNumber string            `json:"customerNumber"`
	DueDate        string            `json:"dueDate"`
	Currency       string            `json:"currency"`
	Rows           []VismaInvoiceRow `json:"rows"`
}

// VismaCompany representa la empresa conectada
type VismaCompany struct {
	ID                 string `json:"id,omitempty"`
	Name               string `json:"name"`
	OrganizationNumber string `json:"organizationNumber,omitempty"`
	CountryCode        string `json:"countryCode,omitempty"`
}
