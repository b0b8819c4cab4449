package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/genin-labs/genin-api/internal/database"
	"github.com/genin-labs/genin-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// samplePDF retorna un PDF mínimo rellenado hasta size bytes
func samplePDF(size int) []byte {
	body := []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	if pad := size - len(body) - len("%%EOF\n"); pad > 0 {
		body = append(body, bytes.Repeat([]byte("%"), pad)...)
	}
	return append(body, []byte("%%EOF\n")...)
}

func newLocalPDFService(t *testing.T) (*PDFService, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := database.NewLocalStorage(dir, quietLogger())
	require.NoError(t, err)
	return NewPDFService(store, 1024, 64*1024, quietLogger()), dir
}

func TestValidatePDF(t *testing.T) {
	svc, _ := newLocalPDFService(t)

	require.NoError(t, svc.ValidatePDF(samplePDF(2048)))

	err := svc.ValidatePDF(samplePDF(100))
	require.Error(t, err)
	assert.Equal(t, "File too small to be a valid PDF", err.Error())

	err = svc.ValidatePDF(samplePDF(128 * 1024))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum size")

	err = svc.ValidatePDF(bytes.Repeat([]byte("A"), 2048))
	require.Error(t, err)
	assert.Equal(t, "Invalid PDF header", err.Error())
	assert.True(t, models.IsKind(err, models.KindClientInput))
}

func TestStoreAndRetrievePDF(t *testing.T) {
	svc, dir := newLocalPDFService(t)
	svc.now = func() time.Time { return time.UnixMilli(1736500000000) }
	ctx := context.Background()
	data := samplePDF(2048)

	stored, err := svc.StorePDF(ctx, data, "../proof of delivery.pdf")
	require.NoError(t, err)

	checksum := FileChecksum(data)
	assert.Equal(t, "proof of delivery_1736500000000_"+checksum[:8]+".pdf", stored.StoredName)
	assert.Equal(t, filepath.Join(dir, "pdfs", stored.StoredName), stored.StoredPath)
	assert.Equal(t, int64(2048), stored.Size)
	assert.Equal(t, checksum, stored.Checksum)
	assert.False(t, stored.HasText)

	assert.True(t, svc.PDFExists(ctx, stored.StoredName))
	got, err := svc.RetrievePDF(ctx, stored.StoredName)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, svc.DeletePDF(ctx, stored.StoredName))
	assert.False(t, svc.PDFExists(ctx, stored.StoredName))
	require.NoError(t, svc.DeletePDF(ctx, stored.StoredName))

	_, err = svc.RetrievePDF(ctx, stored.StoredName)
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestCleanupOldFiles(t *testing.T) {
	svc, dir := newLocalPDFService(t)
	ctx := context.Background()

	old, err := svc.StorePDF(ctx, samplePDF(2048), "old.pdf")
	require.NoError(t, err)
	fresh, err := svc.StorePDF(ctx, samplePDF(4096), "fresh.pdf")
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "pdfs", old.StoredName), past, past))

	removed, err := svc.CleanupOldFiles(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, svc.PDFExists(ctx, old.StoredName))
	assert.True(t, svc.PDFExists(ctx, fresh.StoredName))
}
