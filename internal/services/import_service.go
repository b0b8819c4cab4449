package services

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/genin-labs/genin-api/internal/database"
	"github.com/genin-labs/genin-api/internal/metrics"
	"github.com/genin-labs/genin-api/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// ImportStore es la persistencia de importaciones que usa el pipeline
type ImportStore interface {
	GetByChecksum(ctx context.Context, checksum string) (*models.ImportRecord, error)
	GetByID(ctx context.Context, id int64) (*models.ImportRecord, error)
	Create(ctx context.Context, filename, checksum string, status models.ImportStatus) (*models.ImportRecord, error)
	UpdateStatus(ctx context.Context, id int64, status models.ImportStatus) error
	InsertRow(ctx context.Context, row *models.ImportRow) error
	CountRows(ctx context.Context, importID int64) (int, int, error)
	GetUnprocessedRows(ctx context.Context, importID int64) ([]models.ImportRow, error)
	GetAllRows(ctx context.Context, importID int64) ([]models.ImportRow, error)
}

// headerSynonyms normaliza los encabezados del manifiesto
var headerSynonyms = map[string]string{
	"referanse":         "referanse",
	"reference":         "referanse",
	"transportid":       "transportid",
	"transport_id":      "transportid",
	"avsender":          "avsender",
	"sender":            "avsender",
	"mottaker":          "mottaker",
	"receiver":          "mottaker",
	"sekvensnr":         "sekvensnr",
	"sequence_number":   "sekvensnr",
	"sekvens_nr":        "sekvensnr",
	"status_code":       "status_code",
	"statuscode":        "status_code",
	"status":            "status_code",
	"total_br_vekt":     "total_br_vket",
	"total_brutto_vekt": "total_br_vket",
	"currency":          "currency",
	"valuta":            "currency",
}

var headerSpaces = regexp.MustCompile(`\s+`)

// NormalizeHeader pasa un encabezado a minúsculas, reemplaza espacios por "_"
// y aplica la tabla de sinónimos
func NormalizeHeader(header string) string {
	normalized := headerSpaces.ReplaceAllString(strings.ToLower(strings.TrimSpace(header)), "_")
	if mapped, ok := headerSynonyms[normalized]; ok {
		return mapped
	}
	return normalized
}

// ImportService parsea manifiestos Excel y guarda sus filas
type ImportService struct {
	imports  ImportStore
	validate *validator.Validate
	logger   *logrus.Logger
}

// NewImportService crea una nueva instancia del servicio
func NewImportService(imports ImportStore, logger *logrus.Logger) *ImportService {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &ImportService{
		imports:  imports,
		validate: v,
		logger:   logger,
	}
}

// FileChecksum retorna el md5 hexadecimal del contenido
func FileChecksum(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// ParseSpreadsheet registra la importación y guarda cada fila válida de la
// primera hoja. Las filas inválidas se reportan en Errors sin abortar el resto.
func (s *ImportService) ParseSpreadsheet(ctx context.Context, data []byte, filename string) (*models.ParseResult, error) {
	checksum := FileChecksum(data)

	existing, err := s.imports.GetByChecksum(ctx, checksum)
	if err != nil {
		return nil, fmt.Errorf("error checking checksum: %w", err)
	}
	if existing != nil {
		return nil, duplicateImportError(existing.ID)
	}

	record, err := s.imports.Create(ctx, filename, checksum, models.ImportStatusProcessing)
	if err != nil {
		if database.IsUniqueViolation(err) {
			// otra petición registró el mismo archivo entre la consulta y el insert
			if prior, lookupErr := s.imports.GetByChecksum(ctx, checksum); lookupErr == nil && prior != nil {
				return nil, duplicateImportError(prior.ID)
			}
			return nil, models.NewConflictError("File already processed", nil)
		}
		return nil, fmt.Errorf("error creating import: %w", err)
	}

	log := s.logger.WithFields(logrus.Fields{
		"import_id": record.ID,
		"filename":  filename,
	})

	result, err := s.parseRows(ctx, record.ID, data)
	if err != nil {
		if updErr := s.imports.UpdateStatus(ctx, record.ID, models.ImportStatusFailed); updErr != nil {
			log.WithError(updErr).Error("Failed to mark import as failed")
		}
		metrics.ImportsTotal.WithLabelValues(string(models.ImportStatusFailed)).Inc()
		log.WithError(err).Warn("Excel import failed")
		return nil, err
	}

	if err := s.imports.UpdateStatus(ctx, record.ID, result.Status); err != nil {
		return nil, fmt.Errorf("error updating import status: %w", err)
	}
	metrics.ImportsTotal.WithLabelValues(string(result.Status)).Inc()

	log.WithFields(logrus.Fields{
		"total_rows": result.TotalRows,
		"valid_rows": result.ValidRows,
		"status":     result.Status,
	}).Info("Excel import parsed")

	return result, nil
}

func (s *ImportService) parseRows(ctx context.Context, importID int64, data []byte) (*models.ParseResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, models.NewValidationError("Invalid Excel file")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, models.NewValidationError("No sheets found in Excel file")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, models.NewValidationError("Invalid Excel file")
	}
	if len(rows) == 0 {
		return nil, models.NewValidationError("No data found in Excel file")
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		if strings.TrimSpace(h) != "" {
			headers[i] = NormalizeHeader(h)
		}
	}
	dataRows := rows[1:]

	result := &models.ParseResult{
		ImportID:  importID,
		TotalRows: len(dataRows),
		Errors:    []string{},
	}

	for i, values := range dataRows {
		rowIndex := i + 2

		row, err := s.buildRow(importID, rowIndex, headers, values)
		if err == nil {
			err = s.imports.InsertRow(ctx, row)
			if err != nil {
				s.logger.WithError(err).WithField("row_index", rowIndex).Error("Failed to store import row")
				err = errors.New("failed to store row")
			}
		}
		if err != nil {
			msg := fmt.Sprintf("Row %d: %s", rowIndex, err.Error())
			result.Errors = append(result.Errors, msg)
			metrics.ImportRowsTotal.WithLabelValues("invalid").Inc()
			s.logger.WithField("import_id", importID).Warn(msg)
			continue
		}

		result.ValidRows++
		metrics.ImportRowsTotal.WithLabelValues("valid").Inc()
	}

	// sin filas de datos también cuenta como fallida
	if len(result.Errors) == len(dataRows) {
		result.Status = models.ImportStatusFailed
	} else {
		result.Status = models.ImportStatusCompleted
	}
	return result, nil
}

// buildRow convierte una fila en un registro validado
func (s *ImportService) buildRow(importID int64, rowIndex int, headers, values []string) (*models.ImportRow, error) {
	fields := make(map[string]string, len(headers))
	for i, key := range headers {
		if key == "" || i >= len(values) {
			continue
		}
		if v := strings.TrimSpace(values[i]); v != "" {
			fields[key] = v
		}
	}

	manifest := models.ManifestRow{
		Referanse:   fields["referanse"],
		TransportID: fields["transportid"],
		Avsender:    fields["avsender"],
		Mottaker:    fields["mottaker"],
		Sekvensnr:   fields["sekvensnr"],
		StatusCode:  fields["status_code"],
		Currency:    fields["currency"],
	}
	if raw, ok := fields["total_br_vket"]; ok {
		weight, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
		if err != nil {
			return nil, fmt.Errorf("total_br_vket must be a number")
		}
		manifest.TotalBrVekt = &weight
	}

	if err := s.validate.Struct(manifest); err != nil {
		return nil, validationMessage(err)
	}

	parsed, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("error encoding row: %w", err)
	}
	canonical, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("error encoding row: %w", err)
	}
	sum := md5.Sum(canonical)

	return &models.ImportRow{
		ImportID:    importID,
		RowIndex:    rowIndex,
		Referanse:   manifest.Referanse,
		TransportID: optional(manifest.TransportID),
		Avsender:    optional(manifest.Avsender),
		Mottaker:    optional(manifest.Mottaker),
		Sekvensnr:   manifest.Sekvensnr,
		StatusCode:  optional(manifest.StatusCode),
		ParsedJSON:  parsed,
		Hash:        hex.EncodeToString(sum[:]),
	}, nil
}

// GetImportDetails obtiene una importación con sus contadores de filas
func (s *ImportService) GetImportDetails(ctx context.Context, importID int64) (*models.ImportDetails, error) {
	record, err := s.imports.GetByID(ctx, importID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, models.NewNotFoundError(fmt.Sprintf("Import with ID %d not found", importID))
		}
		return nil, fmt.Errorf("error getting import: %w", err)
	}

	total, processed, err := s.imports.CountRows(ctx, importID)
	if err != nil {
		return nil, fmt.Errorf("error counting rows: %w", err)
	}

	return &models.ImportDetails{
		ImportRecord:  *record,
		TotalRows:     total,
		ProcessedRows: processed,
	}, nil
}

// GetUnprocessedRows retorna las filas pendientes en orden ascendente de row_index
func (s *ImportService) GetUnprocessedRows(ctx context.Context, importID int64) ([]models.ImportRow, error) {
	rows, err := s.imports.GetUnprocessedRows(ctx, importID)
	if err != nil {
		return nil, fmt.Errorf("error getting unprocessed rows: %w", err)
	}
	return rows, nil
}

// GetRows retorna todas las filas o solo las pendientes
func (s *ImportService) GetRows(ctx context.Context, importID int64, unprocessedOnly bool) ([]models.ImportRow, error) {
	if _, err := s.GetImportDetails(ctx, importID); err != nil {
		return nil, err
	}
	if unprocessedOnly {
		return s.GetUnprocessedRows(ctx, importID)
	}
	rows, err := s.imports.GetAllRows(ctx, importID)
	if err != nil {
		return nil, fmt.Errorf("error getting rows: %w", err)
	}
	return rows, nil
}

func duplicateImportError(importID int64) *models.AppError {
	return models.NewConflictError(
		fmt.Sprintf("File already processed with import ID: %d", importID),
		map[string]int64{"import_id": importID},
	)
}

func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "len":
			msgs = append(msgs, fmt.Sprintf("%s must be %s characters", fe.Field(), fe.Param()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return errors.New(strings.Join(msgs, ", "))
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
