package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/genin-labs/genin-api/internal/config"
	"github.com/genin-labs/genin-api/internal/models"
	"github.com/genin-labs/genin-api/internal/services"
	"github.com/genin-labs/genin-api/internal/session"
	"github.com/genin-labs/genin-api/internal/visma"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HealthChecker lo implementan las dependencias que reporta /health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies agrupa lo que necesita la API. Los servicios de datos son nil
// cuando no hay base de datos.
type Dependencies struct {
	Auth     *visma.AuthClient
	Visma    *visma.Client
	Imports  *services.ImportService
	Pricing  *services.PricingService
	Invoices *services.InvoiceService
	PDFs     *services.PDFService
	Database HealthChecker
	Redis    HealthChecker
}

// API maneja todos los endpoints de la API
type API struct {
	cfg         *config.Config
	auth        *visma.AuthClient
	visma       *visma.Client
	states      *visma.StateCodec
	tokenCookie *session.Sealer[models.TokenRecord]
	signer      session.Signer
	imports     *services.ImportService
	pricing     *services.PricingService
	invoices    *services.InvoiceService
	pdfs        *services.PDFService
	database    HealthChecker
	redis       HealthChecker
	logger      *logrus.Logger
}

// NewAPI crea una nueva instancia de la API
func NewAPI(cfg *config.Config, deps Dependencies, logger *logrus.Logger) *API {
	return &API{
		cfg:         cfg,
		auth:        deps.Auth,
		visma:       deps.Visma,
		states:      visma.NewStateCodec(cfg.Session.Secret),
		tokenCookie: session.NewSealer[models.TokenRecord](cfg.Session.Secret, session.AudienceVismaTokens, cfg.Session.TokenCookieMaxAge),
		signer:      session.NewSigner(cfg.Session.Secret, cfg.Session.MaxAge),
		imports:     deps.Imports,
		pricing:     deps.Pricing,
		invoices:    deps.Invoices,
		pdfs:        deps.PDFs,
		database:    deps.Database,
		redis:       deps.Redis,
		logger:      logger,
	}
}

// respondError traduce err a su código HTTP; los 5xx se registran con la causa
func (api *API) respondError(c *gin.Context, err error, logMsg string) {
	status, body := models.NewErrorResponse(err)
	if status >= http.StatusInternalServerError {
		api.logger.WithError(err).WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"path":       c.FullPath(),
		}).Error(logMsg)
	}
	c.JSON(status, body)
}

// bindError responde 400 con el detalle del binding
func (api *API) bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "Invalid request format",
		Code:    string(models.ErrorCodeInvalidRequest),
		Details: []models.ErrorDetail{{Field: "body", Issue: err.Error()}},
	})
}

// paramID parsea un id numérico de la ruta; responde 400 si no lo es
func paramID(c *gin.Context, message string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, models.NewMessageResponse(models.ErrorCodeInvalidRequest, message))
		return 0, false
	}
	return id, true
}

func (api *API) secureCookies() bool {
	return api.cfg.IsProduction()
}
