package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/genin-labs/genin-api/internal/models"
	"github.com/sirupsen/logrus"
)

const invoiceListQuery = `
	SELECT i.id, i.import_row_id, i.total_cents, i.currency, i.visma_invoice_id,
		   i.status, i.created_at, ir.referanse, ir.mottaker, im.filename
	FROM invoices i
	LEFT JOIN import_rows ir ON ir.id = i.import_row_id
	LEFT JOIN imports im ON im.id = ir.import_id
`

// InvoiceRepository maneja las operaciones de base de datos para Invoice
type InvoiceRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewInvoiceRepository crea una nueva instancia del repositorio
func NewInvoiceRepository(db *DB, logger *logrus.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// RecordForRow inserta la factura local y marca la fila como procesada en una transacción
func (r *InvoiceRepository) RecordForRow(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		insert := `
			INSERT INTO invoices (import_row_id, total_cents, currency, visma_invoice_id, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`
		err := tx.QueryRowContext(ctx, insert,
			invoice.ImportRowID, invoice.TotalCents, invoice.Currency, invoice.VismaInvoiceID, invoice.Status,
		).Scan(&invoice.ID, &invoice.CreatedAt)
		if err != nil {
			return fmt.Errorf("error creating invoice: %w", err)
		}

		update := `UPDATE import_rows SET processed = true, visma_invoice_id = $1 WHERE id = $2`
		if _, err := tx.ExecContext(ctx, update, invoice.VismaInvoiceID, invoice.ImportRowID); err != nil {
			return fmt.Errorf("error marking import row processed: %w", err)
		}

		return nil
	})
}

// List retorna todas las facturas, las más recientes primero
func (r *InvoiceRepository) List(ctx context.Context) ([]models.InvoiceListItem, error) {
	rows, cancel, err := r.db.QueryWithTimeout(ctx, invoiceListQuery+` ORDER BY i.created_at DESC, i.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("error querying invoices: %w", err)
	}
	defer cancel()
	defer rows.Close()

	invoices := []models.InvoiceListItem{}
	for rows.Next() {
		var item models.InvoiceListItem
		if err := rows.Scan(invoiceListDest(&item)...); err != nil {
			return nil, fmt.Errorf("error scanning invoice: %w", err)
		}
		invoices = append(invoices, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoices: %w", err)
	}
	return invoices, nil
}

// GetByID obtiene una factura por ID con su fila e importación
func (r *InvoiceRepository) GetByID(ctx context.Context, id int64) (*models.InvoiceListItem, error) {
	var item models.InvoiceListItem
	err := r.db.QueryRowWithTimeout(ctx, invoiceListQuery+` WHERE i.id = $1`, []interface{}{id}, invoiceListDest(&item)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("error querying invoice: %w", err)
	}

	return &item, nil
}

// UpdateStatus actualiza el estado de una factura
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, id int64, status models.InvoiceStatus) error {
	result, err := r.db.ExecWithTimeout(ctx, `UPDATE invoices SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("error updating invoice status: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("invoice %d: %w", id, ErrNotFound)
	}

	r.logger.WithFields(logrus.Fields{
		"invoice_id": id,
		"status":     status,
	}).Info("Invoice status updated")
	return nil
}

func invoiceListDest(item *models.InvoiceListItem) []interface{} {
	return []interface{}{
		&item.ID, &item.ImportRowID, &item.TotalCents, &item.Currency, &item.VismaInvoiceID,
		&item.Status, &item.CreatedAt, &item.Referanse, &item.Mottaker, &item.Filename,
	}
}
