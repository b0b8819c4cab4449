package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/genin-labs/genin-api/internal/models"
	"github.com/sirupsen/logrus"
)

// CustomerRepository maneja la caché local de clientes remotos
type CustomerRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewCustomerRepository crea una nueva instancia del repositorio
func NewCustomerRepository(db *DB, logger *logrus.Logger) *CustomerRepository {
	return &CustomerRepository{
		db:     db,
		logger: logger,
	}
}

// FindByName busca un cliente por nombre sin distinguir mayúsculas; nil si no existe
func (r *CustomerRepository) FindByName(ctx context.Context, name string) (*models.Customer, error) {
	query := `
		SELECT id, name, visma_customer_id, created_at
		FROM customers
		WHERE LOWER(name) = LOWER($1)
		ORDER BY id ASC
		LIMIT 1
	`

	var customer models.Customer
	err := r.db.QueryRowWithTimeout(ctx, query, []interface{}{name},
		&customer.ID, &customer.Name, &customer.VismaCustomerID, &customer.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying customer: %w", err)
	}

	return &customer, nil
}

// Create guarda la relación nombre -> cliente remoto
func (r *CustomerRepository) Create(ctx context.Context, name, vismaCustomerID string) (*models.Customer, error) {
	query := `
		INSERT INTO customers (name, visma_customer_id)
		VALUES ($1, $2)
		RETURNING id, created_at
	`

	customer := &models.Customer{Name: name, VismaCustomerID: vismaCustomerID}
	err := r.db.QueryRowWithTimeout(ctx, query, []interface{}{name, vismaCustomerID},
		&customer.ID, &customer.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("error creating customer: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"customer_id":       customer.ID,
		"visma_customer_id": vismaCustomerID,
	}).Debug("Customer cached")

	return customer, nil
}
