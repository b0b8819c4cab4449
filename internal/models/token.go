package models

import "time"

// TokenRecord representa un par de tokens OAuth del proveedor contable
type TokenRecord struct {
	ID           int64     `json:"id" db:"id"`
	ClientID     string    `json:"client_id" db:"client_id"`
	AccessToken  string    `json:"access_token" db:"access_token"`
	RefreshToken string    `json:"refresh_token" db:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
	CompanyName  *string   `json:"company_name,omitempty" db:"company_name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// ExpiresWithin indica si el token vence dentro de la ventana dada
func (t *TokenRecord) ExpiresWithin(window time.Duration, now time.Time) bool {
	return t.ExpiresAt.Sub(now) <= window
}

// Company retorna el nombre de la empresa o cadena vacía
func (t *TokenRecord) Company() string {
	if t.CompanyName == nil {
		return ""
	}
	return *t.CompanyName
}

// ConnectionStatus representa la respuesta de GET /auth/visma/status
type ConnectionStatus struct {
	Connected bool       `json:"connected"`
	Company   *string    `json:"company"`
	ExpiresAt *time.Time `json:"expires_at"`
	Message   string     `json:"message"`
}

// VismaCallbackRequest representa el cuerpo de POST /auth/visma/callback
type VismaCallbackRequest struct {
	Code  string `json:"code" binding:"required"`
	State string `json:"state"`
}

// LoginRequest representa el cuerpo de POST /auth/login
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}
