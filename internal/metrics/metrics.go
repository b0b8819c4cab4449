package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genin_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genin_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ImportsTotal cuenta las importaciones por estado final
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genin_imports_total",
			Help: "Spreadsheet imports by final status",
		},
		[]string{"status"},
	)

	// ImportRowsTotal cuenta las filas parseadas por resultado (valid/invalid)
	ImportRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genin_import_rows_total",
			Help: "Parsed spreadsheet rows by validation result",
		},
		[]string{"result"},
	)

	InvoicesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "genin_invoices_created_total",
			Help: "Draft invoices created in the accounting system",
		},
	)

	InvoiceRowFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "genin_invoice_row_failures_total",
			Help: "Rows that failed during invoice orchestration",
		},
	)

	// TokenRefreshTotal cuenta los refresh de tokens por resultado (success/failure)
	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genin_token_refresh_total",
			Help: "OAuth token refresh attempts by result",
		},
		[]string{"result"},
	)

	breakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "genin_visma_breaker_state",
			Help: "Accounting API circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// SetBreakerState publica el estado del circuit breaker
func SetBreakerState(state gobreaker.State) {
	switch state {
	case gobreaker.StateClosed:
		breakerState.Set(0)
	case gobreaker.StateHalfOpen:
		breakerState.Set(1)
	case gobreaker.StateOpen:
		breakerState.Set(2)
	}
}

// Middleware registra contador y duración por ruta
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
