package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/genin-labs/genin-api/internal/models"
	"github.com/gin-gonic/gin"
)

// ProcessImport crea facturas para las filas pendientes de una importación
func (api *API) ProcessImport(c *gin.Context) {
	var req models.ProcessImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.bindError(c, err)
		return
	}

	result, err := api.invoices.ProcessImport(c.Request.Context(), req.ImportID, req.PresetCode)
	if err != nil {
		api.respondError(c, err, "Error processing import")
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListInvoices lista las facturas locales
func (api *API) ListInvoices(c *gin.Context) {
	invoices, err := api.invoices.ListInvoices(c.Request.Context())
	if err != nil {
		api.respondError(c, err, "Error listing invoices")
		return
	}
	if invoices == nil {
		invoices = []models.InvoiceListItem{}
	}
	c.JSON(http.StatusOK, invoices)
}

// GetInvoice obtiene una factura con su detalle remoto
func (api *API) GetInvoice(c *gin.Context) {
	id, ok := paramID(c, "Invalid invoice ID")
	if !ok {
		return
	}

	invoice, err := api.invoices.GetInvoice(c.Request.Context(), id)
	if err != nil {
		api.respondError(c, err, "Error getting invoice")
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// SendInvoice envía una factura desde el proveedor contable
func (api *API) SendInvoice(c *gin.Context) {
	id, ok := paramID(c, "Invalid invoice ID")
	if !ok {
		return
	}

	result, err := api.invoices.SendInvoice(c.Request.Context(), id)
	if err != nil {
		api.respondError(c, err, "Error sending invoice")
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetInvoicePDF descarga el resumen PDF de una factura
func (api *API) GetInvoicePDF(c *gin.Context) {
	id, ok := paramID(c, "Invalid invoice ID")
	if !ok {
		return
	}

	data, err := api.invoices.RenderInvoicePDF(c.Request.Context(), id)
	if err != nil {
		api.respondError(c, err, "Error generating invoice PDF")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=invoice_%d.pdf", id))
	c.Data(http.StatusOK, "application/pdf", data)
}

// AttachInvoiceFile adjunta un PDF a la factura remota
func (api *API) AttachInvoiceFile(c *gin.Context) {
	id, ok := paramID(c, "Invalid invoice ID")
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewMessageResponse(models.ErrorCodeInvalidRequest, "File is required"))
		return
	}
	if !api.checkUpload(c, fh, ".pdf") {
		return
	}

	data, err := readUpload(fh)
	if err != nil {
		api.respondError(c, models.NewInternalError("Failed to read uploaded file", err), "Error reading attachment")
		return
	}
	if api.pdfs != nil {
		if err := api.pdfs.ValidatePDF(data); err != nil {
			api.respondError(c, err, "Invalid attachment")
			return
		}
	}

	filename := filepath.Base(strings.ReplaceAll(fh.Filename, "\\", "/"))
	if err := api.invoices.AttachFile(c.Request.Context(), id, filename, data, "application/pdf"); err != nil {
		api.respondError(c, err, "Error attaching file")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "File attached successfully",
	})
}

// ListPresets lista los presets de precio
func (api *API) ListPresets(c *gin.Context) {
	presets, err := api.pricing.ListPresets(c.Request.Context())
	if err != nil {
		api.respondError(c, err, "Error listing presets")
		return
	}
	if presets == nil {
		presets = []models.Preset{}
	}
	c.JSON(http.StatusOK, presets)
}

// CreatePreset crea o actualiza un preset por código
func (api *API) CreatePreset(c *gin.Context) {
	var req models.PresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.bindError(c, err)
		return
	}

	preset, err := api.pricing.CreateOrUpdatePreset(c.Request.Context(), &req)
	if err != nil {
		api.respondError(c, err, "Error saving preset")
		return
	}
	c.JSON(http.StatusCreated, preset)
}

// UpdatePreset actualiza un preset por id
func (api *API) UpdatePreset(c *gin.Context) {
	id, ok := paramID(c, "Invalid preset ID")
	if !ok {
		return
	}

	var req models.PresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.bindError(c, err)
		return
	}

	preset, err := api.pricing.UpdatePreset(c.Request.Context(), id, &req)
	if err != nil {
		api.respondError(c, err, "Error updating preset")
		return
	}
	c.JSON(http.StatusOK, preset)
}

// DeletePreset elimina un preset por id
func (api *API) DeletePreset(c *gin.Context) {
	id, ok := paramID(c, "Invalid preset ID")
	if !ok {
		return
	}

	if err := api.pricing.DeletePreset(c.Request.Context(), id); err != nil {
		api.respondError(c, err, "Error deleting preset")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Preset deleted successfully",
	})
}

// PresetStats resume los presets
func (api *API) PresetStats(c *gin.Context) {
	stats, err := api.pricing.PricingStats(c.Request.Context())
	if err != nil {
		api.respondError(c, err, "Error computing preset stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}
