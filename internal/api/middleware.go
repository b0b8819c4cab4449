package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/genin-labs/genin-api/internal/models"
	"github.com/genin-labs/genin-api/internal/visma"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"

	// tokenCookieName guarda los tokens del proveedor firmados
	tokenCookieName = "visma_tokens"
)

// requestIDMiddleware propaga o genera el X-Request-ID
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// corsMiddleware permite al frontend enviar cookies y las cabeceras de credenciales
func corsMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, x-visma-client-id, x-visma-client-secret")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// loginLimiterTTL es cuánto sobrevive el limiter de una IP sin actividad
const loginLimiterTTL = 10 * time.Minute

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// loginLimiter limita los intentos de login por IP
type loginLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*ipLimiter
	every     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// newLoginLimiter acepta perMinute intentos por minuto con la ráfaga dada
func newLoginLimiter(perMinute, burst int) *loginLimiter {
	if perMinute <= 0 {
		perMinute = 5
	}
	if burst <= 0 {
		burst = 1
	}
	return &loginLimiter{
		limiters:  make(map[string]*ipLimiter),
		every:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:     burst,
		ttl:       loginLimiterTTL,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (l *loginLimiter) allow(ip string) bool {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.ttl {
		l.sweep(now)
	}
	entry, ok := l.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(l.every, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()
	return entry.limiter.AllowN(now, 1)
}

// sweep descarta las IPs inactivas; requiere l.mu
func (l *loginLimiter) sweep(now time.Time) {
	for ip, entry := range l.limiters {
		if now.Sub(entry.lastSeen) >= l.ttl {
			delete(l.limiters, ip)
		}
	}
	l.lastSweep = now
}

func (l *loginLimiter) middleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			logger.WithField("ip", c.ClientIP()).Warn("Login rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				models.NewMessageResponse(models.ErrorCodeRateLimited, "Too many login attempts, try again later"))
			return
		}
		c.Next()
	}
}

// restoreTokensMiddleware repone los tokens desde la cookie cuando el store en memoria está vacío
func (api *API) restoreTokensMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := api.auth.Store().(*visma.MemoryTokenStore)
		if !ok || !store.Empty() {
			c.Next()
			return
		}

		raw, err := c.Cookie(tokenCookieName)
		if err != nil || raw == "" {
			c.Next()
			return
		}

		record, err := api.tokenCookie.Verify(raw)
		if err != nil {
			api.logger.WithError(err).Debug("Ignoring invalid token cookie")
			c.Next()
			return
		}

		if err := store.StoreTokens(c.Request.Context(), &record); err != nil {
			api.logger.WithError(err).Warn("Failed to restore tokens from cookie")
		} else {
			api.logger.Info("Restored Visma tokens from cookie")
		}
		c.Next()
	}
}

// requireDatabase responde 503 cuando los servicios de datos no están disponibles
func (api *API) requireDatabase() gin.HandlerFunc {
	return func(c *gin.Context) {
		if api.imports == nil || api.pricing == nil || api.invoices == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				models.NewMessageResponse(models.ErrorCodeUnavailable, "Database not configured"))
			return
		}
		c.Next()
	}
}

// setTokenCookie escribe la cookie de tokens del proveedor
func (api *API) setTokenCookie(c *gin.Context, record *models.TokenRecord) error {
	sealed, err := api.tokenCookie.Issue(*record)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(tokenCookieName, sealed, int(api.cfg.Session.TokenCookieMaxAge.Seconds()), "/", "", true, true)
	return nil
}

func (api *API) clearTokenCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(tokenCookieName, "", -1, "/", "", true, true)
}

// credentialsFromHeaders lee las credenciales opcionales por petición
func credentialsFromHeaders(c *gin.Context) visma.Credentials {
	return visma.Credentials{
		ClientID:     strings.TrimSpace(c.GetHeader("x-visma-client-id")),
		ClientSecret: strings.TrimSpace(c.GetHeader("x-visma-client-secret")),
	}
}
