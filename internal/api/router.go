package api

import (
	"context"
	"net/http"
	"time"

	"github.com/genin-labs/genin-api/internal/metrics"
	"github.com/genin-labs/genin-api/internal/models"
	"github.com/genin-labs/genin-api/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "1.0.0"

// SetupRouter configura el router con todas las rutas
func (api *API) SetupRouter() *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(corsMiddleware(api.cfg.Server.CORSOrigin))
	router.Use(metrics.Middleware())

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.NewMessageResponse(models.ErrorCodeNotFound, "Route not found"))
	})
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, models.NewMessageResponse(models.ErrorCodeMethodNotAllowed, "Method not allowed"))
	})

	// Rutas públicas
	router.GET("/health", api.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter := newLoginLimiter(api.cfg.Session.LoginRateLimit, api.cfg.Session.LoginRateBurst)
	auth := router.Group("/auth")
	{
		auth.POST("/login", limiter.middleware(api.logger), api.Login)
		auth.POST("/logout", api.Logout)
		auth.GET("/me", api.Me)
	}

	gate := session.Gate(api.signer, api.logger)

	vismaAuth := router.Group("/auth/visma")
	vismaAuth.Use(gate, api.restoreTokensMiddleware())
	{
		vismaAuth.GET("/url", api.VismaAuthURL)
		vismaAuth.POST("/callback", api.VismaCallback)
		vismaAuth.GET("/status", api.VismaStatus)
		vismaAuth.DELETE("/disconnect", api.VismaDisconnect)
	}

	upload := router.Group("/upload")
	upload.Use(gate, api.requireDatabase())
	{
		upload.POST("/files", api.UploadFiles)
		upload.GET("/imports/:id", api.GetImport)
		upload.GET("/imports/:id/rows", api.GetImportRows)
	}

	invoices := router.Group("/invoices")
	invoices.Use(gate, api.requireDatabase(), api.restoreTokensMiddleware())
	{
		invoices.POST("/process-import", api.ProcessImport)
		invoices.GET("", api.ListInvoices)

		invoices.GET("/presets", api.ListPresets)
		invoices.POST("/presets", api.CreatePreset)
		invoices.GET("/presets/stats", api.PresetStats)
		invoices.PUT("/presets/:id", api.UpdatePreset)
		invoices.DELETE("/presets/:id", api.DeletePreset)

		invoices.GET("/:id", api.GetInvoice)
		invoices.POST("/:id/send", api.SendInvoice)
		invoices.GET("/:id/pdf", api.GetInvoicePDF)
		invoices.POST("/:id/attachments", api.AttachInvoiceFile)
	}

	return router
}

// dependencyStatus resume el estado de una dependencia opcional para /health
func dependencyStatus(ctx context.Context, checker HealthChecker) string {
	if checker == nil {
		return "not_configured"
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := checker.HealthCheck(ctx); err != nil {
		return "unhealthy"
	}
	return "healthy"
}
