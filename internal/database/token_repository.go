package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/genin-labs/genin-api/internal/models"
	"github.com/sirupsen/logrus"
)

// TokenRepository guarda el historial de tokens OAuth en visma_tokens.
// Solo inserta: el registro más reciente es el vigente.
type TokenRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewTokenRepository crea una nueva instancia del repositorio
func NewTokenRepository(db *DB, logger *logrus.Logger) *TokenRepository {
	return &TokenRepository{
		db:     db,
		logger: logger,
	}
}

// StoreTokens inserta un nuevo registro de tokens
func (r *TokenRepository) StoreTokens(ctx context.Context, record *models.TokenRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO visma_tokens (client_id, company_name, access_token, refresh_token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRowWithTimeout(ctx, query,
		[]interface{}{record.ClientID, record.CompanyName, record.AccessToken, record.RefreshToken, record.ExpiresAt, record.CreatedAt},
		&record.ID,
	)
	if err != nil {
		return fmt.Errorf("error storing tokens: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"token_id":   record.ID,
		"expires_at": record.ExpiresAt,
	}).Debug("Visma tokens stored")

	return nil
}

// GetLatest retorna el registro más reciente o nil si no hay ninguno
func (r *TokenRepository) GetLatest(ctx context.Context) (*models.TokenRecord, error) {
	query := `
		SELECT id, client_id, company_name, access_token, refresh_token, expires_at, created_at
		FROM visma_tokens
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var record models.TokenRecord
	err := r.db.QueryRowWithTimeout(ctx, query, nil,
		&record.ID, &record.ClientID, &record.CompanyName, &record.AccessToken,
		&record.RefreshToken, &record.ExpiresAt, &record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying tokens: %w", err)
	}

	return &record, nil
}

// ClearTokens elimina todo el historial de tokens
func (r *TokenRepository) ClearTokens(ctx context.Context) error {
	result, err := r.db.ExecWithTimeout(ctx, `DELETE FROM visma_tokens`)
	if err != nil {
		return fmt.Errorf("error clearing tokens: %w", err)
	}

	deleted, _ := result.RowsAffected()
	r.logger.WithField("deleted", deleted).Info("Visma tokens cleared")
	return nil
}
