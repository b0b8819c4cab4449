package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/genin-labs/genin-api/internal/database"
	"github.com/genin-labs/genin-api/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	pdfPrefix   = "pdfs"
	pdfMimeType = "application/pdf"
)

// ObjectStore es el backend donde se guardan los PDFs
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// expiringStore lo implementan los backends que pueden purgar archivos viejos
type expiringStore interface {
	RemoveOlderThan(dir string, cutoff time.Time) (int, error)
}

// PDFService valida y guarda los PDFs de respaldo de una importación
type PDFService struct {
	store   ObjectStore
	minSize int64
	maxSize int64
	logger  *logrus.Logger
	now     func() time.Time
}

// NewPDFService crea una nueva instancia del servicio
func NewPDFService(store ObjectStore, minSize, maxSize int64, logger *logrus.Logger) *PDFService {
	return &PDFService{
		store:   store,
		minSize: minSize,
		maxSize: maxSize,
		logger:  logger,
		now:     time.Now,
	}
}

// ValidatePDF verifica tamaño, encabezado y tipo de contenido
func (s *PDFService) ValidatePDF(data []byte) error {
	size := int64(len(data))
	if size < s.minSize {
		return models.NewValidationError("File too small to be a valid PDF")
	}
	if s.maxSize > 0 && size > s.maxSize {
		return models.NewValidationError(fmt.Sprintf("File exceeds maximum size of %d bytes", s.maxSize))
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return models.NewValidationError("Invalid PDF header")
	}
	if mt := mimetype.Detect(data); !mt.Is(pdfMimeType) {
		return models.NewValidationError(fmt.Sprintf("Unexpected content type %s", mt.String()))
	}
	return nil
}

// StorePDF guarda el PDF con un nombre único derivado del original
func (s *PDFService) StorePDF(ctx context.Context, data []byte, originalName string) (*models.StoredPDF, error) {
	checksum := FileChecksum(data)

	base := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" || stem == "." {
		stem = "document"
	}
	storedName := fmt.Sprintf("%s_%d_%s%s", stem, s.now().UnixMilli(), checksum[:8], ext)

	location, err := s.store.Put(ctx, path.Join(pdfPrefix, storedName), data, pdfMimeType)
	if err != nil {
		return nil, models.NewInternalError("Failed to store PDF file", err)
	}

	s.logger.WithFields(logrus.Fields{
		"original_name": originalName,
		"stored_name":   storedName,
		"size":          len(data),
	}).Info("PDF stored")

	return &models.StoredPDF{
		OriginalName: originalName,
		StoredName:   storedName,
		StoredPath:   location,
		Size:         int64(len(data)),
		Checksum:     checksum,
	}, nil
}

// RetrievePDF lee un PDF guardado
func (s *PDFService) RetrievePDF(ctx context.Context, storedName string) ([]byte, error) {
	data, err := s.store.Get(ctx, pdfKey(storedName))
	if err != nil {
		if errors.Is(err, database.ErrObjectNotFound) {
			return nil, models.NewNotFoundError("PDF file not found")
		}
		return nil, models.NewInternalError("Failed to retrieve PDF file", err)
	}
	return data, nil
}

// DeletePDF elimina un PDF guardado; si no existe no es error
func (s *PDFService) DeletePDF(ctx context.Context, storedName string) error {
	if err := s.store.Delete(ctx, pdfKey(storedName)); err != nil {
		return models.NewInternalError("Failed to delete PDF file", err)
	}
	return nil
}

// PDFExists indica si el PDF existe
func (s *PDFService) PDFExists(ctx context.Context, storedName string) bool {
	ok, err := s.store.Exists(ctx, pdfKey(storedName))
	if err != nil {
		s.logger.WithError(err).Warn("Failed to check PDF existence")
		return false
	}
	return ok
}

// CleanupOldFiles borra los PDFs locales más viejos que olderThan
func (s *PDFService) CleanupOldFiles(olderThan time.Duration) (int, error) {
	store, ok := s.store.(expiringStore)
	if !ok {
		s.logger.Debug("PDF backend does not support cleanup")
		return 0, nil
	}

	removed, err := store.RemoveOlderThan(pdfPrefix, s.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("error cleaning up PDFs: %w", err)
	}
	if removed > 0 {
		s.logger.WithField("removed", removed).Info("Old PDF files removed")
	}
	return removed, nil
}

func pdfKey(storedName string) string {
	return path.Join(pdfPrefix, path.Base(storedName))
}
