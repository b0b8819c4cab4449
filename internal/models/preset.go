package models

import (
	"time"
)

// Preset es una plantilla de precio e IVA identificada por un código corto
type Preset struct {
	ID             int64     `json:"id" db:"id"`
	Code           string    `json:"code" db:"code"`
	Name           string    `json:"name" db:"name"`
	UnitPriceCents int64     `json:"unit_price_cents" db:"unit_price_cents"`
	Currency       string    `json:"currency" db:"currency"`
	VatCode        string    `json:"vat_code" db:"vat_code"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// PresetRequest representa el cuerpo para crear o actualizar un preset
type PresetRequest struct {
	Code           string `json:"code" binding:"required,max=64"`
	Name           string `json:"name" binding:"required,max=255"`
	UnitPriceCents int64  `json:"unit_price_cents" binding:"gte=0"`
	Currency       string `json:"currency" binding:"omitempty,len=3"`
	VatCode        string `json:"vat_code" binding:"omitempty,oneof=25 15 12 0 exempt"`
}

// PricingResult es el precio calculado para una fila
type PricingResult struct {
	PresetCode     string `json:"preset_code"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int64  `json:"quantity"`
	TotalCents     int64  `json:"total_cents"`
	Currency       string `json:"currency"`
	VatPercent     int    `json:"vat_percent"`
	Description    string `json:"description"`
}

// BulkPricingItem es una entrada de CalculateBulkPricing
type BulkPricingItem struct {
	StatusCode string  `json:"status_code"`
	Quantity   int64   `json:"quantity"`
	PresetCode *string `json:"preset_code,omitempty"`
}

// LineItem es una línea de factura lista para enviar al proveedor contable
type LineItem struct {
	Description    string `json:"description"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents"`
	Currency       string `json:"currency"`
	VatPercent     int    `json:"vat_percent"`
	ProductCode    string `json:"product_code"`
}

// CurrencyStats agrupa los presets de una moneda
type CurrencyStats struct {
	Count          int   `json:"count"`
	TotalUnitCents int64 `json:"total_unit_cents"`
}

// PricingStats resume la tabla de presets
type PricingStats struct {
	TotalPresets      int                      `json:"total_presets"`
	Currencies        map[string]CurrencyStats `json:"currencies"`
	MinUnitPriceCents int64                    `json:"min_unit_price_cents"`
	MaxUnitPriceCents int64                    `json:"max_unit_price_cents"`
	AvgUnitPriceCents int64                    `json:"avg_unit_price_cents"`
}
