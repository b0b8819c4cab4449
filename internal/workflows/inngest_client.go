package workflows

import (
	"context"
	"fmt"

	"github.com/genin-labs/genin-api/internal/config"
	"github.com/inngest/inngestgo"
	"github.com/sirupsen/logrus"
)

// InngestClient publica eventos de dominio en Inngest
type InngestClient struct {
	client inngestgo.Client
	logger *logrus.Logger
}

// NewInngestClient crea una nueva instancia del cliente
func NewInngestClient(cfg *config.InngestConfig, logger *logrus.Logger) (*InngestClient, error) {
	// en modo dev el SDK envía al servidor local y no exige event key
	if cfg.EventKey == "" && !cfg.Dev {
		return nil, fmt.Errorf("INNGEST_EVENT_KEY not configured")
	}

	dev := cfg.Dev
	opts := inngestgo.ClientOpts{AppID: cfg.AppID, Dev: &dev}
	if cfg.EventKey != "" {
		opts.EventKey = &cfg.EventKey
	}
	if cfg.SigningKey != "" {
		opts.SigningKey = &cfg.SigningKey
	}

	client, err := inngestgo.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("error creating Inngest client: %w", err)
	}

	return &InngestClient{
		client: client,
		logger: logger,
	}, nil
}

// Publish envía un evento; el id retornado por Inngest se registra en el log
func (c *InngestClient) Publish(ctx context.Context, name string, data map[string]interface{}) error {
	id, err := c.client.Send(ctx, inngestgo.Event{
		Name: name,
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("error sending event %s: %w", name, err)
	}

	c.logger.WithFields(logrus.Fields{
		"event":    name,
		"event_id": id,
	}).Debug("Event published")
	return nil
}
