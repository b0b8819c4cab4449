package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/genin-labs/genin-api/internal/config"
	"github.com/genin-labs/genin-api/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Redis representa la conexión a Redis
type Redis struct {
	*redis.Client
}

// ConnectRedis establece la conexión a Redis
func ConnectRedis(cfg *config.Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	// Verificar conexión
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("error pinging Redis: %w", err)
	}

	return &Redis{client}, nil
}

// Close cierra la conexión a Redis
func (r *Redis) Close() error {
	return r.Client.Close()
}

// HealthCheck verifica la salud de Redis
func (r *Redis) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return r.Ping(ctx).Err()
}

// RedisTokenStore guarda el historial de tokens como una lista JSON.
// El elemento 0 (LPUSH) es el registro vigente.
type RedisTokenStore struct {
	client *redis.Client
	key    string
	logger *logrus.Logger
}

// NewRedisTokenStore crea un token store sobre la lista key
func NewRedisTokenStore(client *redis.Client, key string, logger *logrus.Logger) *RedisTokenStore {
	return &RedisTokenStore{
		client: client,
		key:    key,
		logger: logger,
	}
}

// StoreTokens agrega un nuevo registro al frente de la lista
func (s *RedisTokenStore) StoreTokens(ctx context.Context, record *models.TokenRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	// IDs monotónicos para imitar la tabla append-only
	id, err := s.client.Incr(ctx, s.key+":seq").Result()
	if err != nil {
		return fmt.Errorf("error allocating token id: %w", err)
	}
	record.ID = id

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("error encoding tokens: %w", err)
	}

	if err := s.client.LPush(ctx, s.key, data).Err(); err != nil {
		return fmt.Errorf("error storing tokens: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"token_id":   record.ID,
		"expires_at": record.ExpiresAt,
	}).Debug("Visma tokens stored in Redis")
	return nil
}

// GetLatest retorna el registro vigente o nil si la lista está vacía
func (s *RedisTokenStore) GetLatest(ctx context.Context) (*models.TokenRecord, error) {
	data, err := s.client.LIndex(ctx, s.key, 0).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading tokens: %w", err)
	}

	var record models.TokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("error decoding tokens: %w", err)
	}
	return &record, nil
}

// ClearTokens elimina todo el historial
func (s *RedisTokenStore) ClearTokens(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key, s.key+":seq").Err(); err != nil {
		return fmt.Errorf("error clearing tokens: %w", err)
	}

	s.logger.Info("Visma tokens cleared from Redis")
	return nil
}
