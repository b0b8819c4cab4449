package models

import (
	"encoding/json"
	"time"
)

// ImportStatus representa el estado de una importación
type ImportStatus string

const (
	ImportStatusPending    ImportStatus = "pending"
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusCompleted  ImportStatus = "completed"
	ImportStatusFailed     ImportStatus = "failed"
)

// ImportRecord representa un archivo Excel importado
type ImportRecord struct {
	ID        int64        `json:"id" db:"id"`
	Filename  string       `json:"filename" db:"filename"`
	Checksum  string       `json:"checksum" db:"checksum"`
	Status    ImportStatus `json:"status" db:"status"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// ImportDetails agrega los contadores de filas a una importación
type ImportDetails struct {
	ImportRecord
	TotalRows     int `json:"total_rows"`
	ProcessedRows int `json:"processed_rows"`
}

// ImportRow representa una fila validada del manifiesto
type ImportRow struct {
	ID             int64           `json:"id" db:"id"`
	ImportID       int64           `json:"import_id" db:"import_id"`
	RowIndex       int             `json:"row_index" db:"row_index"`
	Referanse      string          `json:"referanse" db:"referanse"`
	TransportID    *string         `json:"transportid" db:"transportid"`
	Avsender       *string         `json:"avsender" db:"avsender"`
	Mottaker       *string         `json:"mottaker" db:"mottaker"`
	Sekvensnr      string          `json:"sekvensnr" db:"sekvensnr"`
	StatusCode     *string         `json:"status_code" db:"status_code"`
	ParsedJSON     json.RawMessage `json:"parsed_json" db:"parsed_json"`
	Hash           string          `json:"hash" db:"hash"`
	Processed      bool            `json:"processed" db:"processed"`
	VismaInvoiceID *string         `json:"visma_invoice_id" db:"visma_invoice_id"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// ManifestRow es el esquema de validación de una fila del Excel
type ManifestRow struct {
	Referanse   string   `json:"referanse" validate:"required"`
	TransportID string   `json:"transportid,omitempty"`
	Avsender    string   `json:"avsender,omitempty"`
	Mottaker    string   `json:"mottaker,omitempty"`
	Sekvensnr   string   `json:"sekvensnr" validate:"required"`
	StatusCode  string   `json:"status_code,omitempty"`
	TotalBrVekt *float64 `json:"total_br_vket,omitempty" validate:"omitempty,gte=0"`
	Currency    string   `json:"currency,omitempty" validate:"omitempty,len=3"`
}

// ParseResult representa el resultado de parsear un Excel
type ParseResult struct {
	ImportID  int64        `json:"import_id"`
	Status    ImportStatus `json:"status"`
	TotalRows int          `json:"total_rows"`
	ValidRows int          `json:"valid_rows"`
	Errors    []string     `json:"errors"`
}

// StoredPDF describe un PDF guardado junto a una importación
type StoredPDF struct {
	OriginalName string `json:"original_name"`
	StoredName   string `json:"stored_name"`
	StoredPath   string `json:"stored_path"`
	Size         int64  `json:"size"`
	Checksum     string `json:"checksum"`
	HasText      bool   `json:"has_text"`
}

// UploadResponse representa la respuesta de POST /upload/files
type UploadResponse struct {
	ImportID  int64        `json:"import_id"`
	Filename  string       `json:"filename"`
	Status    ImportStatus `json:"status"`
	TotalRows int          `json:"total_rows"`
	ValidRows int          `json:"valid_rows"`
	Errors    []string     `json:"errors"`
	PDFFiles  []StoredPDF  `json:"pdf_files"`
}
