package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/genin-labs/genin-api/internal/database"
	"github.com/genin-labs/genin-api/internal/metrics"
	"github.com/genin-labs/genin-api/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	// paymentTermDays es el plazo de vencimiento de los borradores
	paymentTermDays = 30

	EventImportProcessed = "genin/import.processed"
	EventInvoiceSent     = "genin/invoice.sent"
)

// RowSource entrega las filas pendientes de una importación
type RowSource interface {
	GetUnprocessedRows(ctx context.Context, importID int64) ([]models.ImportRow, error)
}

// InvoiceStore es la persistencia de facturas locales
type InvoiceStore interface {
	RecordForRow(ctx context.Context, invoice *models.Invoice) error
	List(ctx context.Context) ([]models.InvoiceListItem, error)
	GetByID(ctx context.Context, id int64) (*models.InvoiceListItem, error)
	UpdateStatus(ctx context.Context, id int64, status models.InvoiceStatus) error
}

// CustomerCache guarda la relación nombre -> cliente remoto
type CustomerCache interface {
	FindByName(ctx context.Context, name string) (*models.Customer, error)
	Create(ctx context.Context, name, vismaCustomerID string) (*models.Customer, error)
}

// AccountingAPI son las operaciones remotas que usa el orquestador
type AccountingAPI interface {
	FindOrCreateCustomer(ctx context.Context, name string) (*models.VismaCustomer, error)
	CreateDraftInvoice(ctx context.Context, req *models.DraftInvoiceRequest) (*models.VismaInvoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*models.VismaInvoice, error)
	SendInvoice(ctx context.Context, invoiceID string) error
	AttachFileToInvoice(ctx context.Context, invoiceID, filename string, data []byte, mimeType string) error
}

// EventPublisher publica eventos de dominio
type EventPublisher interface {
	Publish(ctx context.Context, name string, data map[string]interface{}) error
}

// InvoiceNotifier avisa cuando una factura fue enviada
type InvoiceNotifier interface {
	NotifyInvoiceSent(ctx context.Context, invoice *models.InvoiceListItem) error
}

// InvoiceService orquesta la creación de facturas a partir de filas importadas
type InvoiceService struct {
	rows      RowSource
	invoices  InvoiceStore
	customers CustomerCache
	pricing   *PricingService
	visma     AccountingAPI
	events    EventPublisher
	notifier  InvoiceNotifier
	documents *DocumentGenerator
	logger    *logrus.Logger
	now       func() time.Time
}

// NewInvoiceService crea una nueva instancia del servicio. events y notifier
// pueden ser nil.
func NewInvoiceService(rows RowSource, invoices InvoiceStore, customers CustomerCache, pricing *PricingService, visma AccountingAPI, events EventPublisher, notifier InvoiceNotifier, logger *logrus.Logger) *InvoiceService {
	return &InvoiceService{
		rows:      rows,
		invoices:  invoices,
		customers: customers,
		pricing:   pricing,
		visma:     visma,
		events:    events,
		notifier:  notifier,
		documents: NewDocumentGenerator(logger),
		logger:    logger,
		now:       time.Now,
	}
}

// ProcessImport crea un borrador remoto y una factura local por cada fila
// pendiente, en orden de row_index. El fallo de una fila no aborta las demás:
// la fila queda sin procesar y su error se agrega a la respuesta.
func (s *InvoiceService) ProcessImport(ctx context.Context, importID int64, presetCode *string) (*models.ProcessImportResponse, error) {
	rows, err := s.rows.GetUnprocessedRows(ctx, importID)
	if err != nil {
		return nil, fmt.Errorf("error getting unprocessed rows: %w", err)
	}

	if len(rows) == 0 {
		return &models.ProcessImportResponse{
			Message: "No unprocessed rows found",
			Errors:  []string{},
		}, nil
	}

	resp := &models.ProcessImportResponse{
		Total:  len(rows),
		Errors: []string{},
	}

	for i := range rows {
		row := &rows[i]
		if err := s.processRow(ctx, row, presetCode); err != nil {
			msg := fmt.Sprintf("Row %d: %s", row.RowIndex, err.Error())
			resp.Errors = append(resp.Errors, msg)
			metrics.InvoiceRowFailuresTotal.Inc()
			s.logger.WithFields(logrus.Fields{
				"import_id": importID,
				"row_index": row.RowIndex,
			}).Warn(msg)
			continue
		}
		resp.Processed++
		metrics.InvoicesCreatedTotal.Inc()
	}

	resp.Message = fmt.Sprintf("Processed %d out of %d rows", resp.Processed, resp.Total)

	s.logger.WithFields(logrus.Fields{
		"import_id": importID,
		"processed": resp.Processed,
		"total":     resp.Total,
		"failed":    len(resp.Errors),
	}).Info("Import processed")

	s.publish(ctx, EventImportProcessed, map[string]interface{}{
		"import_id": importID,
		"processed": resp.Processed,
		"total":     resp.Total,
		"failed":    len(resp.Errors),
	})

	return resp, nil
}

// processRow recorre precio, cliente, borrador remoto y registro local
func (s *InvoiceService) processRow(ctx context.Context, row *models.ImportRow, presetCode *string) error {
	status := StatusOther.String()
	if row.StatusCode != nil && *row.StatusCode != "" {
		status = *row.StatusCode
	}

	pricing, err := s.pricing.CalculatePricing(ctx, status, 1, presetCode)
	if err != nil {
		return err
	}

	customerID, err := s.resolveCustomer(ctx, customerName(row))
	if err != nil {
		return err
	}

	line := s.pricing.CreateInvoiceLineItem(pricing, fmt.Sprintf("Transport service - %s", row.Referanse))
	remote, err := s.visma.CreateDraftInvoice(ctx, &models.DraftInvoiceRequest{
		CustomerNumber: customerID,
		DueDate:        s.now().AddDate(0, 0, paymentTermDays).Format("2006-01-02"),
		Currency:       pricing.Currency,
		Rows: []models.VismaInvoiceRow{{
			Description: line.Description,
			Quantity:    float64(line.Quantity),
			UnitPrice:   float64(line.UnitPriceCents) / 100,
			VatPercent:  line.VatPercent,
		}},
	})
	if err != nil {
		return err
	}

	remoteID := remote.ID
	invoice := &models.Invoice{
		ImportRowID:    row.ID,
		TotalCents:     pricing.TotalCents,
		Currency:       pricing.Currency,
		VismaInvoiceID: &remoteID,
		Status:         models.InvoiceStatusDraft,
	}
	if err := s.invoices.RecordForRow(ctx, invoice); err != nil {
		// el borrador remoto ya existe; la fila se reintentará en el próximo pase
		s.logger.WithError(err).WithFields(logrus.Fields{
			"row_id":           row.ID,
			"visma_invoice_id": remoteID,
		}).Error("Failed to record invoice for row")
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"invoice_id":       invoice.ID,
		"row_index":        row.RowIndex,
		"visma_invoice_id": remoteID,
		"total_cents":      invoice.TotalCents,
	}).Info("Draft invoice created")
	return nil
}

// resolveCustomer consulta primero la caché local y luego el proveedor
func (s *InvoiceService) resolveCustomer(ctx context.Context, name string) (string, error) {
	if s.customers != nil {
		cached, err := s.customers.FindByName(ctx, name)
		if err != nil {
			s.logger.WithError(err).Warn("Customer cache lookup failed")
		} else if cached != nil {
			return cached.VismaCustomerID, nil
		}
	}

	customer, err := s.visma.FindOrCreateCustomer(ctx, name)
	if err != nil {
		return "", err
	}

	if s.customers != nil {
		if _, err := s.customers.Create(ctx, name, customer.ID); err != nil {
			s.logger.WithError(err).Warn("Failed to cache customer")
		}
	}
	return customer.ID, nil
}

func customerName(row *models.ImportRow) string {
	if row.Mottaker != nil && *row.Mottaker != "" {
		return *row.Mottaker
	}
	if row.Avsender != nil && *row.Avsender != "" {
		return *row.Avsender
	}
	return fmt.Sprintf("Customer %s", row.Referanse)
}

// ListInvoices lista las facturas, las más recientes primero
func (s *InvoiceService) ListInvoices(ctx context.Context) ([]models.InvoiceListItem, error) {
	invoices, err := s.invoices.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing invoices: %w", err)
	}
	return invoices, nil
}

// GetInvoice obtiene una factura y, si se puede, su detalle remoto
func (s *InvoiceService) GetInvoice(ctx context.Context, id int64) (*models.InvoiceDetails, error) {
	invoice, err := s.getLocal(ctx, id)
	if err != nil {
		return nil, err
	}

	details := &models.InvoiceDetails{InvoiceListItem: *invoice}
	if invoice.VismaInvoiceID != nil {
		remote, err := s.visma.GetInvoice(ctx, *invoice.VismaInvoiceID)
		if err != nil {
			s.logger.WithError(err).WithField("invoice_id", id).Warn("Failed to fetch Visma invoice details")
		} else {
			details.VismaDetails = remote
		}
	}
	return details, nil
}

// SendInvoice envía la factura remota y marca la local como enviada
func (s *InvoiceService) SendInvoice(ctx context.Context, id int64) (*models.SendInvoiceResponse, error) {
	invoice, err := s.invoices.GetByID(ctx, id)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("error getting invoice: %w", err)
	}
	if invoice == nil || invoice.VismaInvoiceID == nil {
		return nil, models.NewNotFoundError("Invoice not found or not in Visma")
	}

	if err := s.visma.SendInvoice(ctx, *invoice.VismaInvoiceID); err != nil {
		return nil, err
	}

	if err := s.invoices.UpdateStatus(ctx, id, models.InvoiceStatusSent); err != nil {
		return nil, fmt.Errorf("error updating invoice status: %w", err)
	}
	invoice.Status = models.InvoiceStatusSent

	s.logger.WithFields(logrus.Fields{
		"invoice_id":       id,
		"visma_invoice_id": *invoice.VismaInvoiceID,
	}).Info("Invoice sent")

	s.publish(ctx, EventInvoiceSent, map[string]interface{}{
		"invoice_id":       id,
		"visma_invoice_id": *invoice.VismaInvoiceID,
		"total_cents":      invoice.TotalCents,
		"currency":         invoice.Currency,
	})

	if s.notifier != nil {
		if err := s.notifier.NotifyInvoiceSent(ctx, invoice); err != nil {
			s.logger.WithError(err).WithField("invoice_id", id).Warn("Failed to send invoice notification")
		}
	}

	return &models.SendInvoiceResponse{
		Success: true,
		Message: "Invoice sent successfully",
	}, nil
}

// RenderInvoicePDF genera el resumen PDF de una factura local
func (s *InvoiceService) RenderInvoicePDF(ctx context.Context, id int64) ([]byte, error) {
	details, err := s.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := s.documents.GenerateInvoicePDF(&details.InvoiceListItem, details.VismaDetails)
	if err != nil {
		return nil, models.NewInternalError("Failed to generate invoice PDF", err)
	}
	return data, nil
}

// AttachFile adjunta un archivo a la factura remota
func (s *InvoiceService) AttachFile(ctx context.Context, id int64, filename string, data []byte, mimeType string) error {
	invoice, err := s.invoices.GetByID(ctx, id)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("error getting invoice: %w", err)
	}
	if invoice == nil || invoice.VismaInvoiceID == nil {
		return models.NewNotFoundError("Invoice not found or not in Visma")
	}

	if err := s.visma.AttachFileToInvoice(ctx, *invoice.VismaInvoiceID, filename, data, mimeType); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"invoice_id": id,
		"filename":   filename,
		"size":       len(data),
	}).Info("File attached to invoice")
	return nil
}

func (s *InvoiceService) getLocal(ctx context.Context, id int64) (*models.InvoiceListItem, error) {
	invoice, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, models.NewNotFoundError("Invoice not found")
		}
		return nil, fmt.Errorf("error getting invoice: %w", err)
	}
	return invoice, nil
}

func (s *InvoiceService) publish(ctx context.Context, name string, data map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, name, data); err != nil {
		s.logger.WithError(err).WithField("event", name).Warn("Failed to publish event")
	}
}
