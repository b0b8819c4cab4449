package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// issuer de todos los tokens firmados por la aplicación
const issuer = "genin-api"

// Audiencias de cada uso del sellador
const (
	AudienceSession     = "session"
	AudienceOAuthState  = "oauth-state"
	AudienceVismaTokens = "visma-tokens"
)

// ErrInvalidToken indica una firma, audiencia o expiración inválidas
var ErrInvalidToken = errors.New("invalid signed token")

type sealedClaims[T any] struct {
	Data T `json:"data"`
	jwt.RegisteredClaims
}

// Sealer firma y verifica payloads de tipo T como JWT HS256.
// Cada uso tiene su propia audiencia, así un token de un uso no sirve en otro.
type Sealer[T any] struct {
	secret   []byte
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewSealer crea un sellador para la audiencia dada
func NewSealer[T any](secret, audience string, ttl time.Duration) *Sealer[T] {
	return &Sealer[T]{
		secret:   []byte(secret),
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Issue firma el payload
func (s *Sealer[T]) Issue(payload T) (string, error) {
	now := s.now().UTC()
	claims := &sealedClaims[T]{
		Data: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify valida firma, emisor, audiencia y expiración y retorna el payload
func (s *Sealer[T]) Verify(token string) (T, error) {
	var zero T
	if token == "" {
		return zero, ErrInvalidToken
	}

	claims := &sealedClaims[T]{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return zero, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return claims.Data, nil
}
