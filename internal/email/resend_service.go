package email

import (
	"context"
	"fmt"
	"html"

	"github.com/genin-labs/genin-api/internal/config"
	"github.com/genin-labs/genin-api/internal/models"
	"github.com/genin-labs/genin-api/internal/services"
	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"
)

// Sender abstrae el cliente de Resend
type Sender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendService avisa por email cuando una factura fue enviada
type ResendService struct {
	sender    Sender
	fromEmail string
	notifyTo  string
	baseURL   string
	logger    *logrus.Logger
}

// NewResendService crea una nueva instancia de ResendService
func NewResendService(cfg *config.EmailConfig, baseURL string, logger *logrus.Logger) *ResendService {
	client := resend.NewClient(cfg.ResendAPIKey)
	return NewResendServiceWithSender(client.Emails, cfg.From, cfg.NotifyTo, baseURL, logger)
}

// NewResendServiceWithSender permite inyectar el emisor
func NewResendServiceWithSender(sender Sender, from, notifyTo, baseURL string, logger *logrus.Logger) *ResendService {
	return &ResendService{
		sender:    sender,
		fromEmail: from,
		notifyTo:  notifyTo,
		baseURL:   baseURL,
		logger:    logger,
	}
}

// NotifyInvoiceSent envía un resumen de la factura al destinatario configurado
func (s *ResendService) NotifyInvoiceSent(ctx context.Context, invoice *models.InvoiceListItem) error {
	reference := "-"
	if invoice.Referanse != nil {
		reference = *invoice.Referanse
	}
	recipient := "-"
	if invoice.Mottaker != nil {
		recipient = *invoice.Mottaker
	}
	remoteID := "-"
	if invoice.VismaInvoiceID != nil {
		remoteID = *invoice.VismaInvoiceID
	}

	subject := fmt.Sprintf("Invoice #%d sent - %s", invoice.ID, reference)

	htmlContent := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Invoice sent</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 8px; }
        .total { font-size: 18px; font-weight: bold; color: #2980b9; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Invoice sent</h1>
            <p>Invoice #%d</p>
        </div>
        <ul>
            <li><strong>Reference:</strong> %s</li>
            <li><strong>Recipient:</strong> %s</li>
            <li><strong>Visma invoice:</strong> %s</li>
            <li><strong>Total:</strong> <span class="total">%s</span></li>
        </ul>
        <p><a href="%s/invoices/%d/pdf">Download summary (PDF)</a></p>
    </div>
</body>
</html>`,
		invoice.ID,
		html.EscapeString(reference),
		html.EscapeString(recipient),
		html.EscapeString(remoteID),
		services.FormatPrice(invoice.TotalCents, invoice.Currency),
		s.baseURL,
		invoice.ID,
	)

	result, err := s.sender.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{s.notifyTo},
		Subject: subject,
		Html:    htmlContent,
	})
	if err != nil {
		return fmt.Errorf("error sending email via Resend: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"email_id":   result.Id,
		"invoice_id": invoice.ID,
	}).Info("Invoice notification sent via Resend")

	return nil
}
