package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/genin-labs/genin-api/internal/models"
	"github.com/jung-kurt/gofpdf"
	"github.com/sirupsen/logrus"
)

// DocumentGenerator genera el resumen PDF de una factura local
type DocumentGenerator struct {
	logger *logrus.Logger
	now    func() time.Time
}

// NewDocumentGenerator crea una nueva instancia del generador
func NewDocumentGenerator(logger *logrus.Logger) *DocumentGenerator {
	return &DocumentGenerator{
		logger: logger,
		now:    time.Now,
	}
}

// GenerateInvoicePDF genera un PDF con los datos locales de la factura y, si
// existen, las líneas del borrador remoto
func (d *DocumentGenerator) GenerateInvoicePDF(invoice *models.InvoiceListItem, remote *models.VismaInvoice) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	// Header con color de fondo
	pdf.SetFillColor(41, 128, 185)
	pdf.Rect(0, 0, 210, 40, "F")

	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 24)
	pdf.Cell(190, 15, "INVOICE")
	pdf.Ln(15)

	pdf.SetFont("Arial", "B", 16)
	number := fmt.Sprintf("#%d", invoice.ID)
	if remote != nil && remote.InvoiceNumber != "" {
		number = fmt.Sprintf("#%s", remote.InvoiceNumber)
	}
	pdf.Cell(190, 10, number)
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 12)
	pdf.Cell(190, 8, fmt.Sprintf("Date: %s", invoice.CreatedAt.Format("02.01.2006")))
	pdf.Ln(8)

	pdf.SetTextColor(44, 62, 80)
	pdf.SetFillColor(255, 255, 255)

	// Destinatario (izquierda)
	pdf.SetY(50)
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(95, 8, "RECIPIENT")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(95, 6, tr(valueOr(invoice.Mottaker, "N/A")))
	pdf.Ln(6)
	pdf.Cell(95, 6, tr(fmt.Sprintf("Reference: %s", valueOr(invoice.Referanse, "N/A"))))
	pdf.Ln(6)

	// Estado (derecha)
	pdf.SetY(50)
	pdf.SetX(105)
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(95, 8, "DETAILS")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	pdf.SetX(105)
	pdf.Cell(95, 6, fmt.Sprintf("Status: %s", invoice.Status))
	pdf.Ln(6)
	pdf.SetX(105)
	pdf.Cell(95, 6, tr(fmt.Sprintf("Import: %s", valueOr(invoice.Filename, "N/A"))))
	pdf.Ln(6)
	if remote != nil && remote.DueDate != "" {
		pdf.SetX(105)
		pdf.Cell(95, 6, fmt.Sprintf("Due date: %s", remote.DueDate))
		pdf.Ln(6)
	}

	// Tabla de líneas
	pdf.SetY(90)
	pdf.SetFillColor(236, 240, 241)
	pdf.SetFont("Arial", "B", 10)

	colWidths := []float64{80, 25, 35, 20, 30}
	colHeaders := []string{"Description", "Qty", "Unit price", "VAT", "Total"}
	for i, header := range colHeaders {
		pdf.CellFormat(colWidths[i], 10, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 9)
	rowHeight := 8.0
	for i, row := range invoiceRows(invoice, remote) {
		if i%2 == 0 {
			pdf.SetFillColor(248, 249, 250)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}

		unitCents := int64(row.UnitPrice*100 + 0.5)
		lineCents := int64(row.UnitPrice*row.Quantity*100 + 0.5)
		pdf.CellFormat(colWidths[0], rowHeight, tr(row.Description), "1", 0, "L", true, 0, "")
		pdf.CellFormat(colWidths[1], rowHeight, fmt.Sprintf("%g", row.Quantity), "1", 0, "R", true, 0, "")
		pdf.CellFormat(colWidths[2], rowHeight, FormatPrice(unitCents, invoice.Currency), "1", 0, "R", true, 0, "")
		pdf.CellFormat(colWidths[3], rowHeight, fmt.Sprintf("%d%%", row.VatPercent), "1", 0, "R", true, 0, "")
		pdf.CellFormat(colWidths[4], rowHeight, FormatPrice(lineCents, invoice.Currency), "1", 0, "R", true, 0, "")
		pdf.Ln(rowHeight)
	}

	// Total
	totalY := pdf.GetY() + 10
	pdf.SetY(totalY)
	pdf.SetDrawColor(189, 195, 199)
	pdf.Line(120, totalY, 200, totalY)
	pdf.Ln(5)

	pdf.SetFillColor(41, 128, 185)
	pdf.SetFont("Arial", "B", 12)
	pdf.SetX(120)
	pdf.Cell(40, 12, "TOTAL (excl. VAT):")
	pdf.Cell(40, 12, FormatPrice(invoice.TotalCents, invoice.Currency))
	pdf.Ln(12)

	// Footer
	pdf.SetY(270)
	pdf.SetTextColor(149, 165, 166)
	pdf.SetFont("Arial", "", 8)
	pdf.Cell(190, 6, "Generated by Genin invoice automation")
	pdf.Ln(6)
	pdf.Cell(190, 6, fmt.Sprintf("Generated at: %s", d.now().Format("02.01.2006 15:04:05")))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("error generating PDF: %w", err)
	}

	d.logger.WithFields(logrus.Fields{
		"invoice_id": invoice.ID,
		"pdf_size":   buf.Len(),
	}).Debug("Invoice PDF generated")

	return buf.Bytes(), nil
}

// invoiceRows usa las líneas remotas o, sin ellas, una línea con el total local
func invoiceRows(invoice *models.InvoiceListItem, remote *models.VismaInvoice) []models.VismaInvoiceRow {
	if remote != nil && len(remote.Rows) > 0 {
		return remote.Rows
	}
	return []models.VismaInvoiceRow{{
		Description: fmt.Sprintf("Transport service - %s", valueOr(invoice.Referanse, "")),
		Quantity:    1,
		UnitPrice:   float64(invoice.TotalCents) / 100,
		VatPercent:  defaultVatPercent,
	}}
}

func valueOr(v *string, fallback string) string {
	if v == nil || *v == "" {
		return fallback
	}
	return *v
}
