package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/genin-labs/genin-api/internal/database"
	"github.com/genin-labs/genin-api/internal/models"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func strPtr(s string) *string { return &s }

// fakePresets guarda presets en memoria
type fakePresets struct {
	byCode map[string]models.Preset
	nextID int64
}

func newFakePresets(presets ...models.Preset) *fakePresets {
	f := &fakePresets{byCode: make(map[string]models.Preset)}
	for _, p := range presets {
		f.nextID++
		p.ID = f.nextID
		if p.Currency == "" {
			p.Currency = "NOK"
		}
		if p.VatCode == "" {
			p.VatCode = "25"
		}
		f.byCode[p.Code] = p
	}
	return f
}

func seededPresets() *fakePresets {
	return newFakePresets(
		models.Preset{Code: "TRANSPORT", Name: "Transport service", UnitPriceCents: 50000},
		models.Preset{Code: "HANDLING", Name: "Handling fee", UnitPriceCents: 15000},
		models.Preset{Code: "TRANSPORT_OK", Name: "Transport - delivered", UnitPriceCents: 50000},
		models.Preset{Code: "TRANSPORT_MAN", Name: "Transport - manual handling", UnitPriceCents: 65000},
		models.Preset{Code: "TRANSPORT_OTHER", Name: "Transport - other", UnitPriceCents: 55000},
	)
}

func (f *fakePresets) List(context.Context) ([]models.Preset, error) {
	out := make([]models.Preset, 0, len(f.byCode))
	for _, p := range f.byCode {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (f *fakePresets) GetByCode(_ context.Context, code string) (*models.Preset, error) {
	p, ok := f.byCode[code]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakePresets) Upsert(_ context.Context, req *models.PresetRequest) (*models.Preset, error) {
	p, ok := f.byCode[req.Code]
	if !ok {
		f.nextID++
		p.ID = f.nextID
	}
	p.Code, p.Name, p.UnitPriceCents, p.Currency, p.VatCode = req.Code, req.Name, req.UnitPriceCents, req.Currency, req.VatCode
	f.byCode[p.Code] = p
	return &p, nil
}

func (f *fakePresets) Update(_ context.Context, id int64, req *models.PresetRequest) (*models.Preset, error) {
	for code, p := range f.byCode {
		if p.ID == id {
			delete(f.byCode, code)
			p.Code, p.Name, p.UnitPriceCents, p.Currency, p.VatCode = req.Code, req.Name, req.UnitPriceCents, req.Currency, req.VatCode
			f.byCode[p.Code] = p
			return &p, nil
		}
	}
	return nil, fmt.Errorf("preset %d: %w", id, database.ErrNotFound)
}

func (f *fakePresets) Delete(_ context.Context, id int64) error {
	for code, p := range f.byCode {
		if p.ID == id {
			delete(f.byCode, code)
			return nil
		}
	}
	return fmt.Errorf("preset %d: %w", id, database.ErrNotFound)
}

// fakeImports guarda importaciones y filas en memoria
type fakeImports struct {
	mu       sync.Mutex
	imports  map[int64]*models.ImportRecord
	rows     []models.ImportRow
	nextID   int64
	nextRow  int64
	failRows map[string]bool
}

func newFakeImports() *fakeImports {
	return &fakeImports{imports: make(map[int64]*models.ImportRecord), failRows: make(map[string]bool)}
}

func (f *fakeImports) GetByChecksum(_ context.Context, checksum string) (*models.ImportRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.imports {
		if rec.Checksum == checksum {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeImports) GetByID(_ context.Context, id int64) (*models.ImportRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.imports[id]
	if !ok {
		return nil, fmt.Errorf("import %d: %w", id, database.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeImports) Create(_ context.Context, filename, checksum string, status models.ImportStatus) (*models.ImportRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	rec := &models.ImportRecord{ID: f.nextID, Filename: filename, Checksum: checksum, Status: status, CreatedAt: time.Now()}
	f.imports[rec.ID] = rec
	cp := *rec
	return &cp, nil
}

func (f *fakeImports) UpdateStatus(_ context.Context, id int64, status models.ImportStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.imports[id]
	if !ok {
		return database.ErrNotFound
	}
	rec.Status = status
	return nil
}

func (f *fakeImports) InsertRow(_ context.Context, row *models.ImportRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRows[row.Referanse] {
		return fmt.Errorf("insert failed")
	}
	f.nextRow++
	row.ID = f.nextRow
	f.rows = append(f.rows, *row)
	return nil
}

func (f *fakeImports) CountRows(_ context.Context, importID int64) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total, processed := 0, 0
	for _, r := range f.rows {
		if r.ImportID != importID {
			continue
		}
		total++
		if r.Processed {
			processed++
		}
	}
	return total, processed, nil
}

func (f *fakeImports) GetUnprocessedRows(_ context.Context, importID int64) ([]models.ImportRow, error) {
	return f.filter(importID, true), nil
}

func (f *fakeImports) GetAllRows(_ context.Context, importID int64) ([]models.ImportRow, error) {
	return f.filter(importID, false), nil
}

func (f *fakeImports) filter(importID int64, unprocessed bool) []models.ImportRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.ImportRow{}
	for _, r := range f.rows {
		if r.ImportID == importID && (!unprocessed || !r.Processed) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowIndex < out[j].RowIndex })
	return out
}

func (f *fakeImports) markProcessed(rowID int64, remoteID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == rowID {
			f.rows[i].Processed = true
			f.rows[i].VismaInvoiceID = &remoteID
		}
	}
}

// fakeInvoices registra facturas y marca filas en fakeImports
type fakeInvoices struct {
	rows     *fakeImports
	invoices map[int64]*models.InvoiceListItem
	nextID   int64
	statuses map[int64]models.InvoiceStatus
}

func newFakeInvoices(rows *fakeImports) *fakeInvoices {
	return &fakeInvoices{rows: rows, invoices: make(map[int64]*models.InvoiceListItem), statuses: make(map[int64]models.InvoiceStatus)}
}

func (f *fakeInvoices) RecordForRow(_ context.Context, invoice *models.Invoice) error {
	f.nextID++
	invoice.ID = f.nextID
	invoice.CreatedAt = time.Now()
	f.invoices[invoice.ID] = &models.InvoiceListItem{Invoice: *invoice}
	if f.rows != nil {
		f.rows.markProcessed(invoice.ImportRowID, *invoice.VismaInvoiceID)
	}
	return nil
}

func (f *fakeInvoices) List(context.Context) ([]models.InvoiceListItem, error) {
	out := make([]models.InvoiceListItem, 0, len(f.invoices))
	for _, inv := range f.invoices {
		out = append(out, *inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeInvoices) GetByID(_ context.Context, id int64) (*models.InvoiceListItem, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %d: %w", id, database.ErrNotFound)
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeInvoices) UpdateStatus(_ context.Context, id int64, status models.InvoiceStatus) error {
	inv, ok := f.invoices[id]
	if !ok {
		return database.ErrNotFound
	}
	inv.Status = status
	f.statuses[id] = status
	return nil
}

// fakeCustomers es la caché local de clientes
type fakeCustomers struct {
	byName map[string]models.Customer
}

func newFakeCustomers() *fakeCustomers {
	return &fakeCustomers{byName: make(map[string]models.Customer)}
}

func (f *fakeCustomers) FindByName(_ context.Context, name string) (*models.Customer, error) {
	c, ok := f.byName[strings.ToLower(name)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeCustomers) Create(_ context.Context, name, vismaID string) (*models.Customer, error) {
	c := models.Customer{ID: int64(len(f.byName) + 1), Name: name, VismaCustomerID: vismaID}
	f.byName[strings.ToLower(name)] = c
	return &c, nil
}

// fakeVisma simula el proveedor contable
type fakeVisma struct {
	customerCalls []string
	drafts        []models.DraftInvoiceRequest
	sent          []string
	attached      []string
	invoices      map[string]*models.VismaInvoice
	draftErr      error
	sendErr       error
	getErr        error
}

func newFakeVisma() *fakeVisma {
	return &fakeVisma{invoices: make(map[string]*models.VismaInvoice)}
}

func (f *fakeVisma) FindOrCreateCustomer(_ context.Context, name string) (*models.VismaCustomer, error) {
	f.customerCalls = append(f.customerCalls, name)
	return &models.VismaCustomer{ID: "cust-" + strings.ToLower(strings.ReplaceAll(name, " ", "-")), Name: name}, nil
}

func (f *fakeVisma) CreateDraftInvoice(_ context.Context, req *models.DraftInvoiceRequest) (*models.VismaInvoice, error) {
	if f.draftErr != nil {
		return nil, f.draftErr
	}
	f.drafts = append(f.drafts, *req)
	inv := &models.VismaInvoice{ID: fmt.Sprintf("inv-%d", len(f.drafts)), CustomerNumber: req.CustomerNumber, Rows: req.Rows}
	f.invoices[inv.ID] = inv
	return inv, nil
}

func (f *fakeVisma) GetInvoice(_ context.Context, id string) (*models.VismaInvoice, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	inv, ok := f.invoices[id]
	if !ok {
		return nil, models.NewUpstreamError("Failed to fetch invoice from Visma", 404, "", nil)
	}
	return inv, nil
}

func (f *fakeVisma) SendInvoice(_ context.Context, id string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeVisma) AttachFileToInvoice(_ context.Context, id, filename string, _ []byte, _ string) error {
	f.attached = append(f.attached, id+"/"+filename)
	return nil
}

// fakeEvents registra los eventos publicados
type fakeEvents struct {
	names []string
	data  []map[string]interface{}
}

func (f *fakeEvents) Publish(_ context.Context, name string, data map[string]interface{}) error {
	f.names = append(f.names, name)
	f.data = append(f.data, data)
	return nil
}

// fakeNotifier registra las notificaciones enviadas
type fakeNotifier struct {
	notified []int64
}

func (f *fakeNotifier) NotifyInvoiceSent(_ context.Context, invoice *models.InvoiceListItem) error {
	f.notified = append(f.notified, invoice.ID)
	return nil
}
