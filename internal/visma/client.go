package visma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/genin-labs/genin-api/internal/config"
	"github.com/genin-labs/genin-api/internal/metrics"
	"github.com/genin-labs/genin-api/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

// maxResponseBody limita la lectura de respuestas del proveedor
const maxResponseBody = 10 << 20

// AccessTokenProvider entrega un access token vigente o "" si no hay conexión
type AccessTokenProvider interface {
	GetValidAccessToken(ctx context.Context) (string, error)
}

type apiResponse struct {
	status int
	body   []byte
}

// Client envuelve la API REST del proveedor contable.
// Pide un token nuevo en cada llamada y nunca reintenta.
type Client struct {
	baseURL    string
	tokens     AccessTokenProvider
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*apiResponse]
	logger     *logrus.Logger
}

// NewClient crea el cliente con circuit breaker
func NewClient(cfg *config.VismaConfig, tokens AccessTokenProvider, logger *logrus.Logger) *Client {
	settings := gobreaker.Settings{
		Name:        "visma-api",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.BreakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state change")
			metrics.SetBreakerState(to)
		},
	}

	return &Client{
		baseURL:    cfg.APIBaseURL + "/v2",
		tokens:     tokens,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		breaker:    gobreaker.NewCircuitBreaker[*apiResponse](settings),
		logger:     logger,
	}
}

// GetCustomers lista los clientes remotos
func (c *Client) GetCustomers(ctx context.Context) ([]models.VismaCustomer, error) {
	var customers []models.VismaCustomer
	if err := c.doJSON(ctx, http.MethodGet, "/customers", nil, &customers, "Failed to fetch customers from Visma"); err != nil {
		return nil, err
	}
	return customers, nil
}

// CreateCustomer crea un cliente remoto
func (c *Client) CreateCustomer(ctx context.Context, name string, email *string) (*models.VismaCustomer, error) {
	req := models.VismaCustomer{Name: name, Email: email}
	var customer models.VismaCustomer
	if err := c.doJSON(ctx, http.MethodPost, "/customers", req, &customer, "Failed to create customer in Visma"); err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindOrCreateCustomer busca un cliente por nombre exacto sin distinguir mayúsculas
// y lo crea si no existe. Dos llamadas concurrentes con un nombre nuevo pueden
// crear clientes duplicados: no hay bloqueo.
func (c *Client) FindOrCreateCustomer(ctx context.Context, name string) (*models.VismaCustomer, error) {
	customers, err := c.GetCustomers(ctx)
	if err != nil {
		return nil, err
	}

	for i := range customers {
		if strings.EqualFold(customers[i].Name, name) {
			return &customers[i], nil
		}
	}

	customer, err := c.CreateCustomer(ctx, name, nil)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"customer_id": customer.ID,
	}).Info("Visma customer created successfully")
	return customer, nil
}

// CreateDraftInvoice crea un borrador de factura
func (c *Client) CreateDraftInvoice(ctx context.Context, req *models.DraftInvoiceRequest) (*models.VismaInvoice, error) {
	var invoice models.VismaInvoice
	if err := c.doJSON(ctx, http.MethodPost, "/invoices/drafts", req, &invoice, "Failed to create draft invoice in Visma"); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetInvoice obtiene una factura remota
func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*models.VismaInvoice, error) {
	var invoice models.VismaInvoice
	path := "/invoices/" + url.PathEscape(invoiceID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &invoice, fmt.Sprintf("Failed to fetch invoice %s from Visma", invoiceID)); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// SendInvoice envía una factura remota
func (c *Client) SendInvoice(ctx context.Context, invoiceID string) error {
	path := "/invoices/" + url.PathEscape(invoiceID) + "/send"
	return c.doJSON(ctx, http.MethodPost, path, nil, nil, fmt.Sprintf("Failed to send invoice %s in Visma", invoiceID))
}

// GetCompanyInfo obtiene la empresa conectada
func (c *Client) GetCompanyInfo(ctx context.Context) (*models.VismaCompany, error) {
	var company models.VismaCompany
	if err := c.doJSON(ctx, http.MethodGet, "/company", nil, &company, "Failed to fetch company info from Visma"); err != nil {
		return nil, err
	}
	return &company, nil
}

// TestConnection retorna true si GetCompanyInfo funciona
func (c *Client) TestConnection(ctx context.Context) bool {
	if _, err := c.GetCompanyInfo(ctx); err != nil {
		c.logger.WithError(err).Warn("Visma API connection test failed")
		return false
	}
	return true
}

// AttachFileToInvoice adjunta un archivo como multipart en el campo "file"
func (c *Client) AttachFileToInvoice(ctx context.Context, invoiceID, filename string, data []byte, mimeType string) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)
	part, err := w.CreatePart(header)
	if err != nil {
		return models.NewInternalError("Failed to build attachment", err)
	}
	if _, err := part.Write(data); err != nil {
		return models.NewInternalError("Failed to build attachment", err)
	}
	if err := w.Close(); err != nil {
		return models.NewInternalError("Failed to build attachment", err)
	}

	path := "/invoices/" + url.PathEscape(invoiceID) + "/attachments"
	msg := fmt.Sprintf("Failed to attach file to invoice %s in Visma", invoiceID)
	_, err = c.do(ctx, http.MethodPost, path, buf.Bytes(), w.FormDataContentType(), msg)
	return err
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}, failMsg string) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return models.NewInternalError("Failed to encode Visma request", err)
		}
	}

	resp, err := c.do(ctx, method, path, payload, "application/json", failMsg)
	if err != nil {
		return err
	}

	if out != nil && len(resp.body) > 0 {
		if err := json.Unmarshal(resp.body, out); err != nil {
			return models.NewUpstreamError(failMsg, resp.status, string(resp.body), fmt.Errorf("error decoding response: %w", err))
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, contentType, failMsg string) (*apiResponse, error) {
	token, err := c.tokens.GetValidAccessToken(ctx)
	if err != nil {
		return nil, models.NewInternalError("Failed to read Visma tokens", err)
	}
	if token == "" {
		return nil, models.NewUnauthorizedError("Not connected to Visma")
	}

	resp, err := c.breaker.Execute(func() (*apiResponse, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", contentType)
		}

		res, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
		if err != nil {
			return nil, fmt.Errorf("error reading response: %w", err)
		}

		out := &apiResponse{status: res.StatusCode, body: data}
		if res.StatusCode >= http.StatusInternalServerError {
			// cuenta como fallo para el breaker
			return out, &serverError{status: res.StatusCode}
		}
		return out, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, models.NewUpstreamError("Visma API temporarily unavailable", 0, "", err)
		}
		var srvErr *serverError
		if errors.As(err, &srvErr) && resp != nil {
			c.logUpstreamFailure(method, path, resp.status)
			return nil, models.NewUpstreamError(failMsg, resp.status, string(resp.body), err)
		}
		c.logger.WithError(err).WithFields(logrus.Fields{"method": method, "path": path}).Error("Visma request failed")
		return nil, models.NewUpstreamError(failMsg, 0, "", err)
	}

	if resp.status == http.StatusUnauthorized {
		c.logUpstreamFailure(method, path, resp.status)
		return nil, &models.AppError{
			Kind:    models.KindAuth,
			Message: "Visma rejected the access token",
			Details: models.UpstreamDetails{Status: resp.status, Body: string(resp.body)},
		}
	}
	if resp.status >= http.StatusBadRequest {
		c.logUpstreamFailure(method, path, resp.status)
		return nil, models.NewUpstreamError(failMsg, resp.status, string(resp.body), fmt.Errorf("unexpected status %d", resp.status))
	}

	return resp, nil
}

func (c *Client) logUpstreamFailure(method, path string, status int) {
	c.logger.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"status": status,
	}).Warn("Visma API returned an error")
}

type serverError struct {
	status int
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server error: status %d", e.status)
}
