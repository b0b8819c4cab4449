package session

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/genin-labs/genin-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CookieName es la cookie de sesión por contraseña
const CookieName = "genin_session"

// contextKey guarda el payload verificado en gin.Context
const contextKey = "session"

// Payload es el contenido de la cookie de sesión
type Payload struct {
	Authenticated bool  `json:"authenticated"`
	Connected     *bool `json:"connected,omitempty"`
	Timestamp     int64 `json:"ts"`
}

// Signer emite y verifica tokens de sesión opacos
type Signer interface {
	Issue(payload Payload) (string, error)
	Verify(token string) (*Payload, error)
}

type jwtSigner struct {
	sealer *Sealer[Payload]
}

// NewSigner crea el Signer de sesión; el token vence con el Max-Age de la cookie
func NewSigner(secret string, maxAge time.Duration) Signer {
	return &jwtSigner{sealer: NewSealer[Payload](secret, AudienceSession, maxAge)}
}

func (s *jwtSigner) Issue(payload Payload) (string, error) {
	if payload.Timestamp == 0 {
		payload.Timestamp = time.Now().UnixMilli()
	}
	return s.sealer.Issue(payload)
}

func (s *jwtSigner) Verify(token string) (*Payload, error) {
	payload, err := s.sealer.Verify(token)
	if err != nil {
		return nil, err
	}
	return &payload, nil
}

// CheckPassword compara en tiempo constante
func CheckPassword(submitted, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(expected)) == 1
}

// SetCookie escribe la cookie de sesión
func SetCookie(c *gin.Context, token string, maxAge time.Duration, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, int(maxAge.Seconds()), "/", "", secure, true)
}

// ClearCookie expira la cookie de sesión
func ClearCookie(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", secure, true)
}

// FromRequest verifica la cookie de sesión de la petición
func FromRequest(c *gin.Context, signer Signer) (*Payload, bool) {
	token, err := c.Cookie(CookieName)
	if err != nil || token == "" {
		return nil, false
	}
	payload, err := signer.Verify(token)
	if err != nil || !payload.Authenticated {
		return nil, false
	}
	return payload, true
}

// Gate rechaza con 401 las peticiones sin una sesión válida
func Gate(signer Signer, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, ok := FromRequest(c, signer)
		if !ok {
			logger.WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Debug("Rejected request without valid session")
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				models.NewMessageResponse(models.ErrorCodeUnauthorized, "Not authenticated"))
			return
		}
		c.Set(contextKey, payload)
		c.Next()
	}
}
