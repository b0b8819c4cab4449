package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/genin-labs/genin-api/internal/models"
	"github.com/sirupsen/logrus"
)

// PresetRepository maneja las operaciones de base de datos para presets
type PresetRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewPresetRepository crea una nueva instancia del repositorio
func NewPresetRepository(db *DB, logger *logrus.Logger) *PresetRepository {
	return &PresetRepository{
		db:     db,
		logger: logger,
	}
}

// List retorna todos los presets ordenados por código
func (r *PresetRepository) List(ctx context.Context) ([]models.Preset, error) {
	query := `
		SELECT id, code, name, unit_price_cents, currency, vat_code, created_at
		FROM presets
		ORDER BY code ASC
	`

	rows, cancel, err := r.db.QueryWithTimeout(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying presets: %w", err)
	}
	defer cancel()
	defer rows.Close()

	presets := []models.Preset{}
	for rows.Next() {
		var p models.Preset
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.UnitPriceCents, &p.Currency, &p.VatCode, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning preset: %w", err)
		}
		presets = append(presets, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating presets: %w", err)
	}
	return presets, nil
}

// GetByCode obtiene un preset por código; nil si no existe
func (r *PresetRepository) GetByCode(ctx context.Context, code string) (*models.Preset, error) {
	query := `
		SELECT id, code, name, unit_price_cents, currency, vat_code, created_at
		FROM presets
		WHERE code = $1
	`

	var p models.Preset
	err := r.db.QueryRowWithTimeout(ctx, query, []interface{}{code},
		&p.ID, &p.Code, &p.Name, &p.UnitPriceCents, &p.Currency, &p.VatCode, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying preset: %w", err)
	}

	return &p, nil
}

// Upsert crea el preset o actualiza el existente con el mismo código
func (r *PresetRepository) Upsert(ctx context.Context, req *models.PresetRequest) (*models.Preset, error) {
	query := `
		INSERT INTO presets (code, name, unit_price_cents, currency, vat_code)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			unit_price_cents = EXCLUDED.unit_price_cents,
			currency = EXCLUDED.currency,
			vat_code = EXCLUDED.vat_code
		RETURNING id, code, name, unit_price_cents, currency, vat_code, created_at
	`

	var p models.Preset
	err := r.db.QueryRowWithTimeout(ctx, query,
		[]interface{}{req.Code, req.Name, req.UnitPriceCents, req.Currency, req.VatCode},
		&p.ID, &p.Code, &p.Name, &p.UnitPriceCents, &p.Currency, &p.VatCode, &p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("error upserting preset: %w", err)
	}

	return &p, nil
}

// Update reemplaza los campos de un preset por ID
func (r *PresetRepository) Update(ctx context.Context, id int64, req *models.PresetRequest) (*models.Preset, error) {
	query := `
		UPDATE presets
		SET code = $1, name = $2, unit_price_cents = $3, currency = $4, vat_code = $5
		WHERE id = $6
		RETURNING id, code, name, unit_price_cents, currency, vat_code, created_at
	`

	var p models.Preset
	err := r.db.QueryRowWithTimeout(ctx, query,
		[]interface{}{req.Code, req.Name, req.UnitPriceCents, req.Currency, req.VatCode, id},
		&p.ID, &p.Code, &p.Name, &p.UnitPriceCents, &p.Currency, &p.VatCode, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("preset %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("error updating preset: %w", err)
	}

	return &p, nil
}

// Delete elimina un preset por ID
func (r *PresetRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecWithTimeout(ctx, `DELETE FROM presets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting preset: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("preset %d: %w", id, ErrNotFound)
	}
	return nil
}
