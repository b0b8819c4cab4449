package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/genin-labs/genin-api/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrNotFound indica que el registro buscado no existe
var ErrNotFound = errors.New("record not found")

const importRowColumns = `
	id, import_id, row_index, referanse, transportid, avsender, mottaker,
	sekvensnr, status_code, parsed_json, hash, processed, visma_invoice_id, created_at
`

// ImportRepository maneja las operaciones de base de datos para imports e import_rows
type ImportRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewImportRepository crea una nueva instancia del repositorio
func NewImportRepository(db *DB, logger *logrus.Logger) *ImportRepository {
	return &ImportRepository{
		db:     db,
		logger: logger,
	}
}

// GetByChecksum busca una importación por checksum; nil si no existe
func (r *ImportRepository) GetByChecksum(ctx context.Context, checksum string) (*models.ImportRecord, error) {
	query := `
		SELECT id, filename, checksum, status, created_at
		FROM imports
		WHERE checksum = $1
	`

	var rec models.ImportRecord
	err := r.db.QueryRowWithTimeout(ctx, query, []interface{}{checksum},
		&rec.ID, &rec.Filename, &rec.Checksum, &rec.Status, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying import: %w", err)
	}

	return &rec, nil
}

// GetByID obtiene una importación por ID
func (r *ImportRepository) GetByID(ctx context.Context, id int64) (*models.ImportRecord, error) {
	query := `
		SELECT id, filename, checksum, status, created_at
		FROM imports
		WHERE id = $1
	`

	var rec models.ImportRecord
	err := r.db.QueryRowWithTimeout(ctx, query, []interface{}{id},
		&rec.ID, &rec.Filename, &rec.Checksum, &rec.Status, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("import %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("error querying import: %w", err)
	}

	return &rec, nil
}

// Create registra una nueva importación
func (r *ImportRepository) Create(ctx context.Context, filename, checksum string, status models.ImportStatus) (*models.ImportRecord, error) {
	query := `
		INSERT INTO imports (filename, checksum, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	rec := &models.ImportRecord{Filename: filename, Checksum: checksum, Status: status}
	err := r.db.QueryRowWithTimeout(ctx, query, []interface{}{filename, checksum, status},
		&rec.ID, &rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("error creating import: %w", err)
	}

	return rec, nil
}

// UpdateStatus cambia el estado de una importación
func (r *ImportRepository) UpdateStatus(ctx context.Context, id int64, status models.ImportStatus) error {
	result, err := r.db.ExecWithTimeout(ctx, `UPDATE imports SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("error updating import status: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("import %d: %w", id, ErrNotFound)
	}
	return nil
}

// InsertRow guarda una fila validada
func (r *ImportRepository) InsertRow(ctx context.Context, row *models.ImportRow) error {
	query := `
		INSERT INTO import_rows (
			import_id, row_index, referanse, transportid, avsender, mottaker,
			sekvensnr, status_code, parsed_json, hash, processed
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		RETURNING id, created_at
	`

	err := r.db.QueryRowWithTimeout(ctx, query,
		[]interface{}{
			row.ImportID, row.RowIndex, row.Referanse, row.TransportID, row.Avsender,
			row.Mottaker, row.Sekvensnr, row.StatusCode, []byte(row.ParsedJSON), row.Hash, row.Processed,
		},
		&row.ID, &row.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting import row: %w", err)
	}

	return nil
}

// CountRows retorna el total de filas y las ya procesadas
func (r *ImportRepository) CountRows(ctx context.Context, importID int64) (total int, processed int, err error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE processed)
		FROM import_rows
		WHERE import_id = $1
	`

	if err := r.db.QueryRowWithTimeout(ctx, query, []interface{}{importID}, &total, &processed); err != nil {
		return 0, 0, fmt.Errorf("error counting import rows: %w", err)
	}
	return total, processed, nil
}

// GetUnprocessedRows retorna las filas pendientes en orden ascendente de row_index
func (r *ImportRepository) GetUnprocessedRows(ctx context.Context, importID int64) ([]models.ImportRow, error) {
	query := `SELECT ` + importRowColumns + `
		FROM import_rows
		WHERE import_id = $1 AND processed = false
		ORDER BY row_index ASC
	`
	return r.queryRows(ctx, query, importID)
}

// GetAllRows retorna todas las filas en orden ascendente de row_index
func (r *ImportRepository) GetAllRows(ctx context.Context, importID int64) ([]models.ImportRow, error) {
	query := `SELECT ` + importRowColumns + `
		FROM import_rows
		WHERE import_id = $1
		ORDER BY row_index ASC
	`
	return r.queryRows(ctx, query, importID)
}

func (r *ImportRepository) queryRows(ctx context.Context, query string, args ...interface{}) ([]models.ImportRow, error) {
	rows, cancel, err := r.db.QueryWithTimeout(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying import rows: %w", err)
	}
	defer cancel()
	defer rows.Close()

	result := []models.ImportRow{}
	for rows.Next() {
		var row models.ImportRow
		var parsed []byte
		err := rows.Scan(
			&row.ID, &row.ImportID, &row.RowIndex, &row.Referanse, &row.TransportID,
			&row.Avsender, &row.Mottaker, &row.Sekvensnr, &row.StatusCode, &parsed,
			&row.Hash, &row.Processed, &row.VismaInvoiceID, &row.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning import row: %w", err)
		}
		row.ParsedJSON = parsed
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating import rows: %w", err)
	}
	return result, nil
}
