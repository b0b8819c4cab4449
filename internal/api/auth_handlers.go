package api

import (
	"net/http"
	"time"

	"github.com/genin-labs/genin-api/internal/models"
	"github.com/genin-labs/genin-api/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Login valida la contraseña de la aplicación y abre la sesión
func (api *API) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.bindError(c, err)
		return
	}

	if !session.CheckPassword(req.Password, api.cfg.Session.AppPassword) {
		api.logger.WithField("ip", c.ClientIP()).Warn("Login failed")
		c.JSON(http.StatusUnauthorized, models.NewMessageResponse(models.ErrorCodeUnauthorized, "Invalid password"))
		return
	}

	token, err := api.signer.Issue(session.Payload{Authenticated: true})
	if err != nil {
		api.respondError(c, models.NewInternalError("Failed to create session", err), "Error issuing session")
		return
	}

	session.SetCookie(c, token, api.cfg.Session.MaxAge, api.secureCookies())
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Logout cierra la sesión
func (api *API) Logout(c *gin.Context) {
	session.ClearCookie(c, api.secureCookies())
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me indica si la petición trae una sesión válida
func (api *API) Me(c *gin.Context) {
	_, authenticated := session.FromRequest(c, api.signer)
	c.JSON(http.StatusOK, gin.H{
		"authenticated": authenticated,
		"environment": gin.H{
			"VISMA_API_BASE_URL": api.cfg.Visma.APIBaseURL,
			"VISMA_IDENTITY_URL": api.cfg.IdentityHost(),
		},
	})
}

// VismaAuthURL genera la URL de autorización con un state firmado
func (api *API) VismaAuthURL(c *gin.Context) {
	headerCreds := credentialsFromHeaders(c)

	creds := api.auth.EnvCredentials()
	if headerCreds.Valid() {
		creds = headerCreds
	}
	if !creds.Valid() {
		c.JSON(http.StatusBadRequest, models.NewMessageResponse(models.ErrorCodeInvalidRequest, "Visma client credentials not configured"))
		return
	}

	// el state solo lleva credenciales cuando llegaron por cabecera
	state, err := api.states.Issue(headerCreds)
	if err != nil {
		api.respondError(c, models.NewInternalError("Failed to create OAuth state", err), "Error issuing OAuth state")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"auth_url": api.auth.BuildAuthorizationURL(state, creds),
		"state":    state,
	})
}

// VismaCallback canjea el código de autorización y guarda los tokens
func (api *API) VismaCallback(c *gin.Context) {
	var req models.VismaCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.bindError(c, err)
		return
	}

	creds, stateValid := api.states.ResolveCredentials(req.State, api.auth.EnvCredentials())
	if !stateValid && req.State != "" {
		api.logger.Warn("OAuth state failed verification, using environment credentials")
	}
	if !creds.Valid() {
		c.JSON(http.StatusBadRequest, models.NewMessageResponse(models.ErrorCodeInvalidRequest, "Visma client credentials not configured"))
		return
	}

	ctx := c.Request.Context()
	record, err := api.auth.ExchangeCode(ctx, req.Code, "", creds)
	if err != nil {
		api.respondError(c, err, "Error exchanging authorization code")
		return
	}
	if err := api.auth.StoreTokens(ctx, record); err != nil {
		api.respondError(c, models.NewInternalError("Failed to store tokens", err), "Error storing tokens")
		return
	}

	var company *string
	if info, err := api.visma.GetCompanyInfo(ctx); err != nil {
		api.logger.WithError(err).Warn("Could not fetch Visma company info")
	} else if info.Name != "" {
		company = &info.Name
		withCompany := *record
		withCompany.CompanyName = company
		if err := api.auth.StoreTokens(ctx, &withCompany); err != nil {
			api.logger.WithError(err).Warn("Failed to store company name with tokens")
		} else {
			record = &withCompany
		}
	}

	if err := api.setTokenCookie(c, record); err != nil {
		api.logger.WithError(err).Warn("Failed to set token cookie")
	}

	api.logger.WithFields(logrus.Fields{
		"company":    record.Company(),
		"expires_at": record.ExpiresAt,
	}).Info("Connected to Visma eAccounting")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"company": company,
		"message": "Successfully connected to Visma eAccounting",
	})
}

// VismaStatus informa si hay una conexión viva con el proveedor
func (api *API) VismaStatus(c *gin.Context) {
	ctx := c.Request.Context()

	token, err := api.auth.GetValidAccessToken(ctx)
	if err != nil {
		api.respondError(c, models.NewInternalError("Failed to read Visma tokens", err), "Error reading tokens")
		return
	}
	if token == "" {
		c.JSON(http.StatusOK, models.ConnectionStatus{Message: "No valid Visma tokens found"})
		return
	}

	status := models.ConnectionStatus{Message: "Failed to connect to Visma API"}
	if record, err := api.auth.Latest(ctx); err == nil && record != nil {
		status.Company = record.CompanyName
		expiresAt := record.ExpiresAt.UTC().Truncate(time.Second)
		status.ExpiresAt = &expiresAt
	}

	if api.visma.TestConnection(ctx) {
		status.Connected = true
		status.Message = "Connected to Visma eAccounting"
	}
	c.JSON(http.StatusOK, status)
}

// VismaDisconnect borra los tokens guardados y la cookie de tokens
func (api *API) VismaDisconnect(c *gin.Context) {
	if err := api.auth.ClearTokens(c.Request.Context()); err != nil {
		api.respondError(c, models.NewInternalError("Failed to clear tokens", err), "Error clearing tokens")
		return
	}
	api.clearTokenCookie(c)

	api.logger.Info("Disconnected from Visma eAccounting")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Disconnected from Visma eAccounting",
	})
}

// Health reporta el estado del servicio y sus dependencias
func (api *API) Health(c *gin.Context) {
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "genin-api",
		"version":   version,
		"database":  dependencyStatus(ctx, api.database),
		"redis":     dependencyStatus(ctx, api.redis),
	})
}
