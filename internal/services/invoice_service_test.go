package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/genin-labs/genin-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orchestratorFixture struct {
	imports   *fakeImports
	invoices  *fakeInvoices
	customers *fakeCustomers
	visma     *fakeVisma
	events    *fakeEvents
	notifier  *fakeNotifier
	svc       *InvoiceService
}

func newOrchestrator(t *testing.T, presets *fakePresets) *orchestratorFixture {
	t.Helper()
	f := &orchestratorFixture{
		imports:   newFakeImports(),
		customers: newFakeCustomers(),
		visma:     newFakeVisma(),
		events:    &fakeEvents{},
		notifier:  &fakeNotifier{},
	}
	f.invoices = newFakeInvoices(f.imports)
	logger := quietLogger()
	f.svc = NewInvoiceService(f.imports, f.invoices, f.customers, NewPricingService(presets, logger), f.visma, f.events, f.notifier, logger)
	f.svc.now = func() time.Time { return time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC) }
	return f
}

func (f *orchestratorFixture) addRow(t *testing.T, importID int64, idx int, ref, status, mottaker string) {
	t.Helper()
	row := &models.ImportRow{ImportID: importID, RowIndex: idx, Referanse: ref, Sekvensnr: "1"}
	if status != "" {
		row.StatusCode = strPtr(status)
	}
	if mottaker != "" {
		row.Mottaker = strPtr(mottaker)
	}
	require.NoError(t, f.imports.InsertRow(context.Background(), row))
}

func TestProcessImport_RowFailureDoesNotAbortBatch(t *testing.T) {
	// sin TRANSPORT_MAN: la fila con estado MAN falla al resolver el precio
	presets := newFakePresets(
		models.Preset{Code: "TRANSPORT_OK", Name: "Transport - delivered", UnitPriceCents: 50000},
		models.Preset{Code: "TRANSPORT_OTHER", Name: "Transport - other", UnitPriceCents: 55000},
	)
	f := newOrchestrator(t, presets)

	f.addRow(t, 1, 1, "R1", "OK", "Acme AS")
	f.addRow(t, 1, 2, "R2", "", "")
	f.addRow(t, 1, 3, "R3", "MAN", "Acme AS")
	f.addRow(t, 1, 4, "R4", "OK", "acme as")
	f.addRow(t, 1, 5, "R5", "LATE", "Nordic AS")

	resp, err := f.svc.ProcessImport(context.Background(), 1, nil)
	require.NoError(t, err)

	assert.Equal(t, "Processed 4 out of 5 rows", resp.Message)
	assert.Equal(t, 4, resp.Processed)
	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, []string{"Row 3: Preset not found for code: TRANSPORT_MAN"}, resp.Errors)

	remaining, err := f.imports.GetUnprocessedRows(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, 3, remaining[0].RowIndex)

	// la caché local evita una segunda búsqueda remota para el mismo nombre
	assert.Equal(t, []string{"Acme AS", "Customer R2", "Nordic AS"}, f.visma.customerCalls)

	require.Len(t, f.visma.drafts, 4)
	draft := f.visma.drafts[0]
	assert.Equal(t, "cust-acme-as", draft.CustomerNumber)
	assert.Equal(t, "2025-02-09", draft.DueDate)
	assert.Equal(t, "NOK", draft.Currency)
	assert.Equal(t, []models.VismaInvoiceRow{{Description: "Transport service - R1", Quantity: 1, UnitPrice: 500, VatPercent: 25}}, draft.Rows)
	assert.Equal(t, float64(550), f.visma.drafts[1].Rows[0].UnitPrice)

	require.Len(t, f.invoices.invoices, 4)
	inv := f.invoices.invoices[1]
	assert.Equal(t, models.InvoiceStatusDraft, inv.Status)
	assert.Equal(t, int64(50000), inv.TotalCents)
	assert.Equal(t, "inv-1", *inv.VismaInvoiceID)

	require.Equal(t, []string{EventImportProcessed}, f.events.names)
	assert.Equal(t, 4, f.events.data[0]["processed"])
}

func TestProcessImport_RetryPicksUpFailedRow(t *testing.T) {
	presets := newFakePresets(models.Preset{Code: "TRANSPORT_OK", Name: "ok", UnitPriceCents: 100})
	f := newOrchestrator(t, presets)
	f.addRow(t, 1, 2, "R2", "OK", "Acme")
	f.addRow(t, 1, 3, "R3", "MAN", "Acme")

	resp, err := f.svc.ProcessImport(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Processed)

	presets.byCode["TRANSPORT_MAN"] = models.Preset{ID: 9, Code: "TRANSPORT_MAN", Name: "man", UnitPriceCents: 200, Currency: "NOK", VatCode: "25"}
	resp, err = f.svc.ProcessImport(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "Processed 1 out of 1 rows", resp.Message)
	assert.Empty(t, resp.Errors)

	resp, err = f.svc.ProcessImport(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "No unprocessed rows found", resp.Message)
	assert.Equal(t, 0, resp.Processed)
	assert.NotNil(t, resp.Errors)
}

func TestProcessImport_PresetOverride(t *testing.T) {
	f := newOrchestrator(t, seededPresets())
	f.addRow(t, 7, 2, "R2", "OK", "")

	_, err := f.svc.ProcessImport(context.Background(), 7, strPtr("HANDLING"))
	require.NoError(t, err)
	require.Len(t, f.visma.drafts, 1)
	assert.Equal(t, float64(150), f.visma.drafts[0].Rows[0].UnitPrice)
}

func TestProcessImport_UpstreamFailureIsRowError(t *testing.T) {
	f := newOrchestrator(t, seededPresets())
	f.visma.draftErr = models.NewUpstreamError("Failed to create draft invoice in Visma", 502, "bad gateway", nil)
	f.addRow(t, 1, 2, "R2", "OK", "Acme")

	resp, err := f.svc.ProcessImport(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Processed)
	assert.Equal(t, []string{"Row 2: Failed to create draft invoice in Visma"}, resp.Errors)
	assert.Empty(t, f.invoices.invoices)
}

func TestCustomerName(t *testing.T) {
	assert.Equal(t, "Acme", customerName(&models.ImportRow{Referanse: "R", Mottaker: strPtr("Acme"), Avsender: strPtr("Sender")}))
	assert.Equal(t, "Sender", customerName(&models.ImportRow{Referanse: "R", Avsender: strPtr("Sender")}))
	assert.Equal(t, "Customer R9", customerName(&models.ImportRow{Referanse: "R9"}))
}

func TestSendInvoice(t *testing.T) {
	f := newOrchestrator(t, seededPresets())
	f.addRow(t, 1, 2, "R2", "OK", "Acme")
	_, err := f.svc.ProcessImport(context.Background(), 1, nil)
	require.NoError(t, err)

	resp, err := f.svc.SendInvoice(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, &models.SendInvoiceResponse{Success: true, Message: "Invoice sent successfully"}, resp)
	assert.Equal(t, []string{"inv-1"}, f.visma.sent)
	assert.Equal(t, models.InvoiceStatusSent, f.invoices.statuses[1])
	assert.Contains(t, f.events.names, EventInvoiceSent)
	assert.Equal(t, []int64{1}, f.notifier.notified)

	_, err = f.svc.SendInvoice(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindNotFound))
	assert.Equal(t, "Invoice not found or not in Visma", err.Error())
}

func TestSendInvoice_UpstreamFailureKeepsDraft(t *testing.T) {
	f := newOrchestrator(t, seededPresets())
	f.addRow(t, 1, 2, "R2", "OK", "Acme")
	_, err := f.svc.ProcessImport(context.Background(), 1, nil)
	require.NoError(t, err)

	f.visma.sendErr = errors.New("boom")
	_, err = f.svc.SendInvoice(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, models.InvoiceStatusDraft, f.invoices.invoices[1].Status)
	assert.Empty(t, f.notifier.notified)
}

func TestSendInvoice_WithoutRemoteID(t *testing.T) {
	f := newOrchestrator(t, seededPresets())
	f.invoices.invoices[5] = &models.InvoiceListItem{Invoice: models.Invoice{ID: 5, Status: models.InvoiceStatusDraft}}

	_, err := f.svc.SendInvoice(context.Background(), 5)
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestGetInvoice_RemoteDetailsBestEffort(t *testing.T) {
	f := newOrchestrator(t, seededPresets())
	f.addRow(t, 1, 2, "R2", "OK", "Acme")
	_, err := f.svc.ProcessImport(context.Background(), 1, nil)
	require.NoError(t, err)

	details, err := f.svc.GetInvoice(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, details.VismaDetails)
	assert.Equal(t, "inv-1", details.VismaDetails.ID)

	f.visma.getErr = errors.New("unavailable")
	details, err = f.svc.GetInvoice(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, details.VismaDetails)

	_, err = f.svc.GetInvoice(context.Background(), 42)
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestRenderInvoicePDF(t *testing.T) {
	f := newOrchestrator(t, seededPresets())
	f.addRow(t, 1, 2, "R2", "OK", "Sjøfart AS")
	_, err := f.svc.ProcessImport(context.Background(), 1, nil)
	require.NoError(t, err)

	data, err := f.svc.RenderInvoicePDF(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestAttachFile(t *testing.T) {
	f := newOrchestrator(t, seededPresets())
	f.addRow(t, 1, 2, "R2", "OK", "Acme")
	_, err := f.svc.ProcessImport(context.Background(), 1, nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.AttachFile(context.Background(), 1, "pod.pdf", []byte("%PDF-1.4"), "application/pdf"))
	assert.Equal(t, []string{"inv-1/pod.pdf"}, f.visma.attached)

	err = f.svc.AttachFile(context.Background(), 2, "pod.pdf", nil, "application/pdf")
	assert.True(t, models.IsKind(err, models.KindNotFound))
}
