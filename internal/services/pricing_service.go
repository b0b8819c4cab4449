package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/genin-labs/genin-api/internal/database"
	"github.com/genin-labs/genin-api/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultCurrency se usa cuando un preset o una fila no traen moneda
const DefaultCurrency = "NOK"

// defaultVatPercent aplica a códigos de IVA desconocidos
const defaultVatPercent = 25

// StatusCode es el código de estado de una fila del manifiesto
type StatusCode int

const (
	StatusOther StatusCode = iota
	StatusOK
	StatusManual
)

// ParseStatusCode convierte el texto libre de la fila en un StatusCode.
// Cualquier valor desconocido o vacío es StatusOther.
func ParseStatusCode(raw string) StatusCode {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "OK":
		return StatusOK
	case "MAN":
		return StatusManual
	default:
		return StatusOther
	}
}

// PresetCode retorna el preset asociado al estado
func (s StatusCode) PresetCode() string {
	switch s {
	case StatusOK:
		return "TRANSPORT_OK"
	case StatusManual:
		return "TRANSPORT_MAN"
	default:
		return "TRANSPORT_OTHER"
	}
}

func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusManual:
		return "MAN"
	default:
		return "OTHER"
	}
}

var vatPercentages = map[string]int{
	"25":     25,
	"15":     15,
	"12":     12,
	"0":      0,
	"exempt": 0,
}

// VatPercent convierte un código de IVA en porcentaje
func VatPercent(vatCode string) int {
	if pct, ok := vatPercentages[strings.ToLower(strings.TrimSpace(vatCode))]; ok {
		return pct
	}
	return defaultVatPercent
}

// PresetStore es la persistencia de presets que usa el servicio
type PresetStore interface {
	List(ctx context.Context) ([]models.Preset, error)
	GetByCode(ctx context.Context, code string) (*models.Preset, error)
	Upsert(ctx context.Context, req *models.PresetRequest) (*models.Preset, error)
	Update(ctx context.Context, id int64, req *models.PresetRequest) (*models.Preset, error)
	Delete(ctx context.Context, id int64) error
}

// PricingService resuelve precios a partir de presets
type PricingService struct {
	presets PresetStore
	logger  *logrus.Logger
}

// NewPricingService crea una nueva instancia del servicio
func NewPricingService(presets PresetStore, logger *logrus.Logger) *PricingService {
	return &PricingService{
		presets: presets,
		logger:  logger,
	}
}

// CalculatePricing calcula el precio de una fila. El override de preset tiene
// prioridad sobre el mapeo por estado.
func (s *PricingService) CalculatePricing(ctx context.Context, statusCode string, quantity int64, presetOverride *string) (*models.PricingResult, error) {
	if quantity <= 0 {
		quantity = 1
	}

	code := ParseStatusCode(statusCode).PresetCode()
	if presetOverride != nil && strings.TrimSpace(*presetOverride) != "" {
		code = strings.TrimSpace(*presetOverride)
	}

	preset, err := s.presets.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("error getting preset %s: %w", code, err)
	}
	if preset == nil {
		return nil, models.NewNotFoundError(fmt.Sprintf("Preset not found for code: %s", code))
	}

	currency := preset.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	return &models.PricingResult{
		PresetCode:     preset.Code,
		UnitPriceCents: preset.UnitPriceCents,
		Quantity:       quantity,
		TotalCents:     preset.UnitPriceCents * quantity,
		Currency:       currency,
		VatPercent:     VatPercent(preset.VatCode),
		Description:    preset.Name,
	}, nil
}

// CalculateBulkPricing calcula varias líneas y su total. La moneda es la de la
// primera línea.
func (s *PricingService) CalculateBulkPricing(ctx context.Context, items []models.BulkPricingItem) ([]models.PricingResult, int64, string, error) {
	results := make([]models.PricingResult, 0, len(items))
	var total int64
	for _, item := range items {
		pricing, err := s.CalculatePricing(ctx, item.StatusCode, item.Quantity, item.PresetCode)
		if err != nil {
			return nil, 0, "", err
		}
		results = append(results, *pricing)
		total += pricing.TotalCents
	}

	currency := DefaultCurrency
	if len(results) > 0 {
		currency = results[0].Currency
	}
	return results, total, currency, nil
}

// CreateInvoiceLineItem arma una línea de factura a partir de un precio
func (s *PricingService) CreateInvoiceLineItem(pricing *models.PricingResult, description string) models.LineItem {
	if description == "" {
		description = pricing.Description
	}
	return models.LineItem{
		Description:    description,
		Quantity:       pricing.Quantity,
		UnitPriceCents: pricing.UnitPriceCents,
		TotalCents:     pricing.TotalCents,
		Currency:       pricing.Currency,
		VatPercent:     pricing.VatPercent,
		ProductCode:    pricing.PresetCode,
	}
}

// ListPresets lista los presets ordenados por código
func (s *PricingService) ListPresets(ctx context.Context) ([]models.Preset, error) {
	presets, err := s.presets.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing presets: %w", err)
	}
	return presets, nil
}

// GetPreset obtiene un preset por código
func (s *PricingService) GetPreset(ctx context.Context, code string) (*models.Preset, error) {
	preset, err := s.presets.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("error getting preset: %w", err)
	}
	if preset == nil {
		return nil, models.NewNotFoundError(fmt.Sprintf("Preset not found for code: %s", code))
	}
	return preset, nil
}

// CreateOrUpdatePreset crea un preset o actualiza el existente con el mismo código
func (s *PricingService) CreateOrUpdatePreset(ctx context.Context, req *models.PresetRequest) (*models.Preset, error) {
	normalizePresetRequest(req)

	preset, err := s.presets.Upsert(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("error saving preset: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"code":             preset.Code,
		"unit_price_cents": preset.UnitPriceCents,
	}).Info("Preset saved successfully")
	return preset, nil
}

// UpdatePreset actualiza un preset por id
func (s *PricingService) UpdatePreset(ctx context.Context, id int64, req *models.PresetRequest) (*models.Preset, error) {
	normalizePresetRequest(req)

	preset, err := s.presets.Update(ctx, id, req)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, models.NewNotFoundError(fmt.Sprintf("Preset with ID %d not found", id))
		}
		if database.IsUniqueViolation(err) {
			return nil, models.NewConflictError(fmt.Sprintf("Preset code %s already exists", req.Code), nil)
		}
		return nil, fmt.Errorf("error updating preset: %w", err)
	}
	return preset, nil
}

// DeletePreset elimina un preset por id
func (s *PricingService) DeletePreset(ctx context.Context, id int64) error {
	if err := s.presets.Delete(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.NewNotFoundError(fmt.Sprintf("Preset with ID %d not found", id))
		}
		return fmt.Errorf("error deleting preset: %w", err)
	}

	s.logger.WithField("preset_id", id).Info("Preset deleted")
	return nil
}

// PricingStats resume la tabla de presets
func (s *PricingService) PricingStats(ctx context.Context) (*models.PricingStats, error) {
	presets, err := s.presets.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing presets: %w", err)
	}

	stats := &models.PricingStats{
		TotalPresets: len(presets),
		Currencies:   make(map[string]models.CurrencyStats),
	}
	if len(presets) == 0 {
		return stats, nil
	}

	var sum int64
	stats.MinUnitPriceCents = presets[0].UnitPriceCents
	for _, p := range presets {
		sum += p.UnitPriceCents
		if p.UnitPriceCents < stats.MinUnitPriceCents {
			stats.MinUnitPriceCents = p.UnitPriceCents
		}
		if p.UnitPriceCents > stats.MaxUnitPriceCents {
			stats.MaxUnitPriceCents = p.UnitPriceCents
		}

		cs := stats.Currencies[p.Currency]
		cs.Count++
		cs.TotalUnitCents += p.UnitPriceCents
		stats.Currencies[p.Currency] = cs
	}
	stats.AvgUnitPriceCents = int64(math.Round(float64(sum) / float64(len(presets))))

	return stats, nil
}

func normalizePresetRequest(req *models.PresetRequest) {
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Name = strings.TrimSpace(req.Name)
	req.Currency = strings.ToUpper(req.Currency)
	if req.Currency == "" {
		req.Currency = DefaultCurrency
	}
	if req.VatCode == "" {
		req.VatCode = "25"
	}
}

// FormatPrice formatea céntimos al estilo noruego: "1 234,56 kr"
func FormatPrice(cents int64, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}

	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	whole := strconv.FormatInt(cents/100, 10)
	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(' ')
		}
		grouped.WriteRune(r)
	}

	symbol := strings.ToUpper(currency)
	if symbol == "NOK" {
		symbol = "kr"
	}
	return fmt.Sprintf("%s%s,%02d %s", sign, grouped.String(), cents%100, symbol)
}

var (
	priceStrip  = regexp.MustCompile(`[^\d.,]`)
	priceNumber = regexp.MustCompile(`^\d*\.?\d+|^\d+`)
)

// ParsePriceToCents convierte "500,50 kr", "1 234,56" o "500.50" en céntimos
func ParsePriceToCents(raw string) (int64, error) {
	clean := priceStrip.ReplaceAllString(raw, "")
	clean = strings.Replace(clean, ",", ".", 1)

	num := priceNumber.FindString(clean)
	if num == "" {
		return 0, models.NewValidationError(fmt.Sprintf("Invalid price format: %s", raw))
	}
	amount, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, models.NewValidationError(fmt.Sprintf("Invalid price format: %s", raw))
	}
	return int64(math.Round(amount * 100)), nil
}
