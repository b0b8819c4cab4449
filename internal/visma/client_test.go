package visma

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/genin-labs/genin-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token string
	calls atomic.Int32
	err   error
}

func (s *staticTokens) GetValidAccessToken(context.Context) (string, error) {
	s.calls.Add(1)
	return s.token, s.err
}

func newAPIClient(t *testing.T, handler http.HandlerFunc, tokens AccessTokenProvider) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(testVismaConfig("", srv.URL), tokens, quietLogger())
}

func TestClient_InjectsFreshBearerPerCall(t *testing.T) {
	tokens := &staticTokens{token: "tok-1"}
	client := newAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/company", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(models.VismaCompany{Name: "Acme AS"})
	}, tokens)

	company, err := client.GetCompanyInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Acme AS", company.Name)

	assert.True(t, client.TestConnection(context.Background()))
	assert.Equal(t, int32(2), tokens.calls.Load())
}

func TestClient_NotConnected(t *testing.T) {
	var hits atomic.Int32
	client := newAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}, &staticTokens{})

	_, err := client.GetCustomers(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindAuth))
	assert.Equal(t, "Not connected to Visma", err.Error())
	assert.Zero(t, hits.Load())
	assert.False(t, client.TestConnection(context.Background()))
}

func TestFindOrCreateCustomer_MatchesCaseInsensitive(t *testing.T) {
	var posts atomic.Int32
	client := newAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
		}
		_ = json.NewEncoder(w).Encode([]models.VismaCustomer{
			{ID: "c-1", Name: "Nordic Freight AS"},
			{ID: "c-2", Name: "Acme AS"},
		})
	}, &staticTokens{token: "t"})

	customer, err := client.FindOrCreateCustomer(context.Background(), "ACME as")
	require.NoError(t, err)
	assert.Equal(t, "c-2", customer.ID)
	assert.Zero(t, posts.Load())
}

func TestFindOrCreateCustomer_CreatesWhenMissing(t *testing.T) {
	client := newAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode([]models.VismaCustomer{{ID: "c-1", Name: "Acme AS"}})
		case http.MethodPost:
			var body models.VismaCustomer
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Acme", body.Name)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(models.VismaCustomer{ID: "c-9", Name: body.Name})
		}
	}, &staticTokens{token: "t"})

	customer, err := client.FindOrCreateCustomer(context.Background(), "Acme")
	require.NoError(t, err)
	assert.Equal(t, "c-9", customer.ID)
}

func TestCreateDraftInvoice_PropagatesUpstreamBody(t *testing.T) {
	var calls atomic.Int32
	client := newAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v2/invoices/drafts", r.URL.Path)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"ledger locked"}`))
	}, &staticTokens{token: "t"})

	_, err := client.CreateDraftInvoice(context.Background(), &models.DraftInvoiceRequest{
		CustomerNumber: "c-1", DueDate: "2025-02-01", Currency: "NOK",
		Rows: []models.VismaInvoiceRow{{Description: "Transport service - R1", Quantity: 1, UnitPrice: 500, VatPercent: 25}},
	})
	require.Error(t, err)

	appErr, ok := models.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, models.KindUpstream, appErr.Kind)
	assert.Equal(t, "Failed to create draft invoice in Visma", appErr.Message)
	assert.Equal(t, models.UpstreamDetails{Status: http.StatusBadGateway, Body: `{"message":"ledger locked"}`}, appErr.Details)
	// sin reintentos
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ProviderRejectsToken(t *testing.T) {
	client := newAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, &staticTokens{token: "t"})

	_, err := client.GetInvoice(context.Background(), "inv-1")
	assert.True(t, models.IsKind(err, models.KindAuth))
}

func TestClient_TokenStoreError(t *testing.T) {
	client := newAPIClient(t, func(w http.ResponseWriter, r *http.Request) {}, &staticTokens{err: errors.New("db down")})

	err := client.SendInvoice(context.Background(), "inv-1")
	assert.True(t, models.IsKind(err, models.KindInternal))
}

func TestClient_BreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	client := newAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, &staticTokens{token: "t"})

	for i := 0; i < 10; i++ {
		_, err := client.GetCompanyInfo(context.Background())
		require.Error(t, err)
	}
	require.Equal(t, int32(10), calls.Load())

	_, err := client.GetCompanyInfo(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Visma API temporarily unavailable", err.Error())
	assert.Equal(t, int32(10), calls.Load())
}

func TestSendAndAttach(t *testing.T) {
	client := newAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/invoices/inv-1/send":
			assert.Equal(t, http.MethodPost, r.Method)
			w.WriteHeader(http.StatusNoContent)
		case "/v2/invoices/inv-1/attachments":
			file, header, err := r.FormFile("file")
			if !assert.NoError(t, err) {
				return
			}
			defer file.Close()
			data, _ := io.ReadAll(file)
			assert.Equal(t, "proof.pdf", header.Filename)
			assert.Equal(t, "application/pdf", header.Header.Get("Content-Type"))
			assert.Equal(t, "%PDF-1.4 test", string(data))
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}, &staticTokens{token: "t"})

	require.NoError(t, client.SendInvoice(context.Background(), "inv-1"))
	require.NoError(t, client.AttachFileToInvoice(context.Background(), "inv-1", "proof.pdf", []byte("%PDF-1.4 test"), "application/pdf"))
}
