package visma

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/genin-labs/genin-api/internal/config"
	"github.com/genin-labs/genin-api/internal/metrics"
	"github.com/genin-labs/genin-api/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	// RefreshBuffer es la ventana antes del vencimiento en la que se refresca el token
	RefreshBuffer = 5 * time.Minute

	// defaultExpiresIn se usa cuando el proveedor no informa expires_in
	defaultExpiresIn = 3600 * time.Second

	// acrValues limita la selección a empresas de eAccounting
	acrValues = "service:44643EB1-3F76-4C1C-A672-402AE8085934"
)

// Credentials son las credenciales OAuth del cliente
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Valid indica si ambas credenciales están presentes
func (c Credentials) Valid() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// AuthExchangeError describe un fallo del endpoint de tokens
type AuthExchangeError struct {
	GrantType   string
	Status      int
	Code        string
	Description string
}

func (e *AuthExchangeError) Error() string {
	msg := fmt.Sprintf("%s grant failed", e.GrantType)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Description != "" {
		return msg + ": " + e.Description
	}
	if e.Code != "" {
		return msg + ": " + e.Code
	}
	return msg
}

// AuthClient construye URLs de autorización, canjea códigos y refresca tokens
type AuthClient struct {
	cfg        *config.VismaConfig
	store      TokenStore
	httpClient *http.Client
	logger     *logrus.Logger
	now        func() time.Time

	// secretos de clientes recibidos por cabecera; solo viven en memoria
	mu      sync.RWMutex
	secrets map[string]string
}

// NewAuthClient crea el cliente OAuth sobre el TokenStore inyectado
func NewAuthClient(cfg *config.VismaConfig, store TokenStore, logger *logrus.Logger) *AuthClient {
	return &AuthClient{
		cfg:        cfg,
		store:      store,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		logger:     logger,
		now:        time.Now,
		secrets:    make(map[string]string),
	}
}

// EnvCredentials retorna las credenciales configuradas por entorno
func (a *AuthClient) EnvCredentials() Credentials {
	return Credentials{ClientID: a.cfg.ClientID, ClientSecret: a.cfg.ClientSecret}
}

// Store retorna el TokenStore inyectado
func (a *AuthClient) Store() TokenStore {
	return a.store
}

func (a *AuthClient) oauthConfig(creds Credentials, redirectURI string) *oauth2.Config {
	if redirectURI == "" {
		redirectURI = a.cfg.RedirectURI
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       strings.Fields(a.cfg.Scope),
		Endpoint: oauth2.Endpoint{
			AuthURL:   a.cfg.BaseURL + "/connect/authorize",
			TokenURL:  a.cfg.BaseURL + "/connect/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

func (a *AuthClient) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

// BuildAuthorizationURL construye la URL de autorización con el state firmado
func (a *AuthClient) BuildAuthorizationURL(state string, creds Credentials) string {
	return a.oauthConfig(creds, "").AuthCodeURL(state,
		oauth2.SetAuthURLParam("prompt", "select_account"),
		oauth2.SetAuthURLParam("acr_values", acrValues),
	)
}

// ExchangeCode canjea un código de autorización por tokens (Basic auth)
func (a *AuthClient) ExchangeCode(ctx context.Context, code, redirectURI string, creds Credentials) (*models.TokenRecord, error) {
	tok, err := a.oauthConfig(creds, redirectURI).Exchange(a.clientContext(ctx), code)
	if err != nil {
		exErr := exchangeError("authorization_code", err)
		a.logger.WithFields(logrus.Fields{
			"status": exErr.Status,
			"code":   exErr.Code,
		}).Warn("Visma code exchange failed")
		return nil, models.NewUpstreamError("Failed to exchange authorization code for token", exErr.Status, exErr.Description, exErr)
	}

	if creds.ClientID != a.cfg.ClientID {
		a.mu.Lock()
		a.secrets[creds.ClientID] = creds.ClientSecret
		a.mu.Unlock()
	}

	record := a.recordFromToken(tok)
	record.ClientID = creds.ClientID
	return record, nil
}

// credentialsFor retorna las credenciales del cliente que emitió los tokens
func (a *AuthClient) credentialsFor(clientID string) (Credentials, error) {
	if clientID == "" || clientID == a.cfg.ClientID {
		return a.EnvCredentials(), nil
	}

	a.mu.RLock()
	secret, ok := a.secrets[clientID]
	a.mu.RUnlock()
	if !ok {
		return Credentials{}, fmt.Errorf("no credentials known for client %s", clientID)
	}
	return Credentials{ClientID: clientID, ClientSecret: secret}, nil
}

// RefreshToken pide un nuevo par de tokens con grant_type=refresh_token
func (a *AuthClient) RefreshToken(ctx context.Context, refreshToken string, creds Credentials) (*models.TokenRecord, error) {
	src := a.oauthConfig(creds, "").TokenSource(a.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		exErr := exchangeError("refresh_token", err)
		return nil, models.NewUpstreamError("Failed to refresh access token", exErr.Status, exErr.Description, exErr)
	}

	return a.recordFromToken(tok), nil
}

// StoreTokens guarda un nuevo registro de tokens
func (a *AuthClient) StoreTokens(ctx context.Context, record *models.TokenRecord) error {
	return a.store.StoreTokens(ctx, record)
}

// ClearTokens elimina todos los tokens
func (a *AuthClient) ClearTokens(ctx context.Context) error {
	return a.store.ClearTokens(ctx)
}

// Latest retorna el registro vigente sin refrescarlo
func (a *AuthClient) Latest(ctx context.Context) (*models.TokenRecord, error) {
	return a.store.GetLatest(ctx)
}

// GetValidAccessToken retorna un access token que no vence dentro de RefreshBuffer.
// Retorna "" si no hay conexión o si el refresh falló; en ese caso borra los tokens.
func (a *AuthClient) GetValidAccessToken(ctx context.Context) (string, error) {
	rec, err := a.store.GetLatest(ctx)
	if err != nil {
		return "", fmt.Errorf("error reading tokens: %w", err)
	}
	if rec == nil {
		return "", nil
	}

	if !rec.ExpiresWithin(RefreshBuffer, a.now()) {
		return rec.AccessToken, nil
	}

	// sin exclusión mutua: dos peticiones pueden refrescar a la vez
	creds, err := a.credentialsFor(rec.ClientID)
	var refreshed *models.TokenRecord
	if err == nil {
		refreshed, err = a.RefreshToken(ctx, rec.RefreshToken, creds)
	}
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("failure").Inc()
		a.logger.WithError(err).Warn("Visma token refresh failed, clearing stored tokens")
		if clearErr := a.store.ClearTokens(ctx); clearErr != nil {
			a.logger.WithError(clearErr).Error("Failed to clear stale Visma tokens")
		}
		return "", nil
	}

	refreshed.CompanyName = rec.CompanyName
	refreshed.ClientID = rec.ClientID
	if err := a.store.StoreTokens(ctx, refreshed); err != nil {
		return "", fmt.Errorf("error storing refreshed tokens: %w", err)
	}

	metrics.TokenRefreshTotal.WithLabelValues("success").Inc()
	a.logger.WithField("expires_at", refreshed.ExpiresAt).Info("Visma token refreshed")
	return refreshed.AccessToken, nil
}

func (a *AuthClient) recordFromToken(tok *oauth2.Token) *models.TokenRecord {
	now := a.now()
	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = now.Add(defaultExpiresIn)
	}
	return &models.TokenRecord{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
	}
}

func exchangeError(grant string, err error) *AuthExchangeError {
	exErr := &AuthExchangeError{GrantType: grant, Description: err.Error()}

	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		exErr.Code = rErr.ErrorCode
		exErr.Description = rErr.ErrorDescription
		if exErr.Description == "" {
			exErr.Description = strings.TrimSpace(string(rErr.Body))
		}
		if rErr.Response != nil {
			exErr.Status = rErr.Response.StatusCode
		}
	}
	return exErr
}
