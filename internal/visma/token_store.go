package visma

import (
	"context"
	"sync"
	"time"

	"github.com/genin-labs/genin-api/internal/models"
)

// TokenStore persiste el historial de tokens OAuth.
// StoreTokens siempre agrega; GetLatest retorna el más reciente o nil.
type TokenStore interface {
	StoreTokens(ctx context.Context, record *models.TokenRecord) error
	GetLatest(ctx context.Context) (*models.TokenRecord, error)
	ClearTokens(ctx context.Context) error
}

// MemoryTokenStore guarda los tokens en memoria del proceso
type MemoryTokenStore struct {
	mu      sync.RWMutex
	records []models.TokenRecord
	nextID  int64
}

// NewMemoryTokenStore crea un store vacío
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) StoreTokens(_ context.Context, record *models.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	record.ID = s.nextID
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	s.records = append(s.records, *record)
	return nil
}

func (s *MemoryTokenStore) GetLatest(_ context.Context) (*models.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return nil, nil
	}
	latest := s.records[len(s.records)-1]
	return &latest, nil
}

func (s *MemoryTokenStore) ClearTokens(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	return nil
}

// Empty indica si no hay registros
func (s *MemoryTokenStore) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records) == 0
}
