package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_CountsByRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/invoices/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/invoices/:id", "200"))

	for _, id := range []string{"1", "2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invoices/"+id, nil))
	}

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/invoices/:id", "200"))
	assert.Equal(t, before+2, after)
}

func TestSetBreakerState(t *testing.T) {
	SetBreakerState(gobreaker.StateOpen)
	assert.Equal(t, float64(2), testutil.ToFloat64(breakerState))

	SetBreakerState(gobreaker.StateClosed)
	assert.Equal(t, float64(0), testutil.ToFloat64(breakerState))
}
