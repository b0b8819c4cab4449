package models

import (
	"time"
)

// Customer representa la caché local de clientes creados en el proveedor contable
type Customer struct {
	ID              int64     `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	VismaCustomerID string    `json:"visma_customer_id" db:"visma_customer_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
