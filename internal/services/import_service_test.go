package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/genin-labs/genin-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// buildWorkbook arma un xlsx en memoria con las filas dadas en la primera hoja
func buildWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func manifestWorkbook(t *testing.T) []byte {
	return buildWorkbook(t, [][]interface{}{
		{"Reference", "Transport ID", "Sender", "Mottaker", "Sequence Number", "Status", "Total Br Vekt", "Valuta"},
		{"R-1", "T-1", "Oslo Lager", "Acme AS", "1", "OK", "12,5", "NOK"},
		{"R-2", "", "Oslo Lager", "", "2", "MAN", "", ""},
		{"", "T-3", "", "", "3", "OK", "", ""},
		{"R-4", "", "", "Nordic AS", "4", "", "heavy", ""},
	})
}

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		"Reference":         "referanse",
		"Transport ID":      "transportid",
		"SENDER":            "avsender",
		"receiver":          "mottaker",
		"Sequence  Number":  "sekvensnr",
		"sekvens nr":        "sekvensnr",
		"Status":            "status_code",
		"StatusCode":        "status_code",
		"Total Brutto Vekt": "total_br_vket",
		"Valuta":            "currency",
		"Extra Column":      "extra_column",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeHeader(in), in)
	}
}

func TestParseSpreadsheet_ValidAndInvalidRows(t *testing.T) {
	store := newFakeImports()
	svc := NewImportService(store, quietLogger())

	result, err := svc.ParseSpreadsheet(context.Background(), manifestWorkbook(t), "manifest.xlsx")
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.ImportID)
	assert.Equal(t, 4, result.TotalRows)
	assert.Equal(t, 2, result.ValidRows)
	assert.Equal(t, models.ImportStatusCompleted, result.Status)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "Row 4: referanse is required", result.Errors[0])
	assert.Equal(t, "Row 5: total_br_vket must be a number", result.Errors[1])

	rows, err := store.GetAllRows(context.Background(), result.ImportID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, 2, first.RowIndex)
	assert.Equal(t, "R-1", first.Referanse)
	assert.Equal(t, "T-1", *first.TransportID)
	assert.Equal(t, "Oslo Lager", *first.Avsender)
	assert.Equal(t, "Acme AS", *first.Mottaker)
	assert.Equal(t, "OK", *first.StatusCode)
	assert.Len(t, first.Hash, 32)
	assert.False(t, first.Processed)

	var parsed map[string]string
	require.NoError(t, json.Unmarshal(first.ParsedJSON, &parsed))
	assert.Equal(t, "12,5", parsed["total_br_vket"])
	assert.Equal(t, "NOK", parsed["currency"])

	second := rows[1]
	assert.Equal(t, 3, second.RowIndex)
	assert.Nil(t, second.Mottaker)
	assert.Nil(t, second.TransportID)

	rec, err := store.GetByID(context.Background(), result.ImportID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusCompleted, rec.Status)
}

func TestParseSpreadsheet_DuplicateChecksum(t *testing.T) {
	store := newFakeImports()
	svc := NewImportService(store, quietLogger())
	data := manifestWorkbook(t)

	first, err := svc.ParseSpreadsheet(context.Background(), data, "manifest.xlsx")
	require.NoError(t, err)

	_, err = svc.ParseSpreadsheet(context.Background(), data, "manifest-copy.xlsx")
	require.Error(t, err)
	appErr, ok := models.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, models.KindConflict, appErr.Kind)
	assert.Equal(t, "File already processed with import ID: 1", appErr.Message)
	assert.Equal(t, map[string]int64{"import_id": first.ImportID}, appErr.Details)

	// un byte extra tras el directorio zip sigue siendo legible pero cambia el checksum
	changed := append([]byte{}, data...)
	changed = append(changed, 0)
	second, err := svc.ParseSpreadsheet(context.Background(), changed, "manifest.xlsx")
	require.NoError(t, err)
	assert.NotEqual(t, first.ImportID, second.ImportID)
}

func TestParseSpreadsheet_AllRowsInvalid(t *testing.T) {
	store := newFakeImports()
	svc := NewImportService(store, quietLogger())

	data := buildWorkbook(t, [][]interface{}{
		{"referanse", "sekvensnr"},
		{"R-1", ""},
		{"", "2"},
	})

	result, err := svc.ParseSpreadsheet(context.Background(), data, "bad.xlsx")
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusFailed, result.Status)
	assert.Equal(t, 0, result.ValidRows)
	assert.Equal(t, []string{"Row 2: sekvensnr is required", "Row 3: referanse is required"}, result.Errors)
}

func TestParseSpreadsheet_StoreFailureIsRowError(t *testing.T) {
	store := newFakeImports()
	store.failRows["R-2"] = true
	svc := NewImportService(store, quietLogger())

	data := buildWorkbook(t, [][]interface{}{
		{"referanse", "sekvensnr"},
		{"R-1", "1"},
		{"R-2", "2"},
	})

	result, err := svc.ParseSpreadsheet(context.Background(), data, "m.xlsx")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ValidRows)
	assert.Equal(t, []string{"Row 3: failed to store row"}, result.Errors)
	assert.Equal(t, models.ImportStatusCompleted, result.Status)
}

func TestParseSpreadsheet_EmptySheet(t *testing.T) {
	store := newFakeImports()
	svc := NewImportService(store, quietLogger())

	_, err := svc.ParseSpreadsheet(context.Background(), buildWorkbook(t, nil), "empty.xlsx")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindClientInput))
	assert.Equal(t, "No data found in Excel file", err.Error())

	rec, err := store.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusFailed, rec.Status)
}

func TestParseSpreadsheet_NotAWorkbook(t *testing.T) {
	store := newFakeImports()
	svc := NewImportService(store, quietLogger())

	_, err := svc.ParseSpreadsheet(context.Background(), []byte("not a spreadsheet"), "x.xlsx")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindClientInput))
}

func TestGetImportDetails(t *testing.T) {
	store := newFakeImports()
	svc := NewImportService(store, quietLogger())

	result, err := svc.ParseSpreadsheet(context.Background(), manifestWorkbook(t), "manifest.xlsx")
	require.NoError(t, err)

	details, err := svc.GetImportDetails(context.Background(), result.ImportID)
	require.NoError(t, err)
	assert.Equal(t, "manifest.xlsx", details.Filename)
	assert.Equal(t, 2, details.TotalRows)
	assert.Equal(t, 0, details.ProcessedRows)

	_, err = svc.GetImportDetails(context.Background(), 77)
	require.Error(t, err)
	assert.Equal(t, "Import with ID 77 not found", err.Error())

	_, err = svc.GetRows(context.Background(), 77, true)
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestGetUnprocessedRows_OrderedAndFiltered(t *testing.T) {
	store := newFakeImports()
	ctx := context.Background()
	for _, idx := range []int{5, 2, 4, 3} {
		require.NoError(t, store.InsertRow(ctx, &models.ImportRow{ImportID: 1, RowIndex: idx, Referanse: "R", Sekvensnr: "1"}))
	}
	store.markProcessed(3, "inv-x")

	svc := NewImportService(store, quietLogger())
	rows, err := svc.GetUnprocessedRows(ctx, 1)
	require.NoError(t, err)

	var indexes []int
	for _, r := range rows {
		assert.False(t, r.Processed)
		indexes = append(indexes, r.RowIndex)
	}
	assert.Equal(t, []int{2, 3, 5}, indexes)
}
