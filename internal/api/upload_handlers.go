package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/genin-labs/genin-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	maxPDFFiles = 10
	// margen para cabeceras y campos del formulario
	multipartOverhead = 64 << 10
)

// UploadFiles recibe el Excel del manifiesto y los PDFs opcionales
func (api *API) UploadFiles(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, uploadBodyLimit(api.cfg.Upload.MaxFileSize))
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, models.NewMessageResponse(models.ErrorCodeTooLarge,
				fmt.Sprintf("Request exceeds maximum size of %d bytes", tooLarge.Limit)))
			return
		}
		c.JSON(http.StatusBadRequest, models.NewMessageResponse(models.ErrorCodeInvalidRequest, "Invalid multipart form"))
		return
	}

	excelFiles := form.File["excel"]
	if len(excelFiles) != 1 {
		c.JSON(http.StatusBadRequest, models.NewMessageResponse(models.ErrorCodeInvalidRequest, "Excel file is required"))
		return
	}
	pdfFiles := form.File["pdf"]
	if len(pdfFiles) > maxPDFFiles {
		c.JSON(http.StatusBadRequest, models.NewMessageResponse(models.ErrorCodeInvalidRequest,
			fmt.Sprintf("At most %d PDF files are allowed", maxPDFFiles)))
		return
	}

	excel := excelFiles[0]
	if !api.checkUpload(c, excel, ".xlsx") {
		return
	}
	for _, fh := range pdfFiles {
		if !api.checkUpload(c, fh, ".pdf") {
			return
		}
	}

	data, err := readUpload(excel)
	if err != nil {
		api.respondError(c, models.NewInternalError("Failed to read uploaded file", err), "Error reading Excel upload")
		return
	}

	result, err := api.imports.ParseSpreadsheet(c.Request.Context(), data, excel.Filename)
	if err != nil {
		api.respondError(c, err, "Error parsing Excel file")
		return
	}

	stored := make([]models.StoredPDF, 0, len(pdfFiles))
	for _, fh := range pdfFiles {
		pdf, err := api.storeUploadedPDF(c, fh)
		if err != nil {
			api.logger.WithError(err).WithField("filename", fh.Filename).Warn("Skipping invalid PDF")
			continue
		}
		stored = append(stored, *pdf)
	}

	api.logger.WithFields(logrus.Fields{
		"import_id":  result.ImportID,
		"total_rows": result.TotalRows,
		"valid_rows": result.ValidRows,
		"pdf_files":  len(stored),
	}).Info("Upload processed")

	c.JSON(http.StatusOK, models.UploadResponse{
		ImportID:  result.ImportID,
		Filename:  excel.Filename,
		Status:    result.Status,
		TotalRows: result.TotalRows,
		ValidRows: result.ValidRows,
		Errors:    result.Errors,
		PDFFiles:  stored,
	})
}

func (api *API) storeUploadedPDF(c *gin.Context, fh *multipart.FileHeader) (*models.StoredPDF, error) {
	if api.pdfs == nil {
		return nil, fmt.Errorf("PDF storage not configured")
	}
	data, err := readUpload(fh)
	if err != nil {
		return nil, err
	}
	if err := api.pdfs.ValidatePDF(data); err != nil {
		return nil, err
	}
	return api.pdfs.StorePDF(c.Request.Context(), data, fh.Filename)
}

// checkUpload valida extensión y tamaño; responde el error si falla
func (api *API) checkUpload(c *gin.Context, fh *multipart.FileHeader, expected ...string) bool {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !containsString(expected, ext) || !containsString(api.cfg.Upload.AllowedTypes, ext) {
		c.JSON(http.StatusBadRequest, models.NewMessageResponse(models.ErrorCodeInvalidRequest,
			fmt.Sprintf("File type not allowed: %s", fh.Filename)))
		return false
	}
	if fh.Size > api.cfg.Upload.MaxFileSize {
		c.JSON(http.StatusRequestEntityTooLarge, models.NewMessageResponse(models.ErrorCodeTooLarge,
			fmt.Sprintf("File exceeds maximum size of %d bytes", api.cfg.Upload.MaxFileSize)))
		return false
	}
	return true
}

// GetImport retorna una importación con sus contadores
func (api *API) GetImport(c *gin.Context) {
	id, ok := paramID(c, "Invalid import ID")
	if !ok {
		return
	}

	details, err := api.imports.GetImportDetails(c.Request.Context(), id)
	if err != nil {
		api.respondError(c, err, "Error getting import")
		return
	}
	c.JSON(http.StatusOK, details)
}

// GetImportRows retorna las filas de una importación
func (api *API) GetImportRows(c *gin.Context) {
	id, ok := paramID(c, "Invalid import ID")
	if !ok {
		return
	}
	unprocessed := c.Query("unprocessed") == "true"

	rows, err := api.imports.GetRows(c.Request.Context(), id, unprocessed)
	if err != nil {
		api.respondError(c, err, "Error getting import rows")
		return
	}
	if rows == nil {
		rows = []models.ImportRow{}
	}
	c.JSON(http.StatusOK, rows)
}

// uploadBodyLimit acota el cuerpo a un Excel y maxPDFFiles PDFs de tamaño máximo
func uploadBodyLimit(maxFileSize int64) int64 {
	return maxFileSize*(1+maxPDFFiles) + multipartOverhead
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
