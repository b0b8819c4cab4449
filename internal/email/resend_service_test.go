package email

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/genin-labs/genin-api/internal/models"
	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	last *resend.SendEmailRequest
	err  error
}

func (f *fakeSender) SendWithContext(_ context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.last = params
	if f.err != nil {
		return nil, f.err
	}
	return &resend.SendEmailResponse{Id: "email-1"}, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNotifyInvoiceSent(t *testing.T) {
	sender := &fakeSender{}
	svc := NewResendServiceWithSender(sender, "billing@genin.no", "ops@genin.no", "https://api.genin.no", quietLogger())

	ref := "R-<1>"
	remote := "inv-9"
	err := svc.NotifyInvoiceSent(context.Background(), &models.InvoiceListItem{
		Invoice:   models.Invoice{ID: 12, TotalCents: 123456, Currency: "NOK", VismaInvoiceID: &remote},
		Referanse: &ref,
	})
	require.NoError(t, err)

	require.NotNil(t, sender.last)
	assert.Equal(t, "billing@genin.no", sender.last.From)
	assert.Equal(t, []string{"ops@genin.no"}, sender.last.To)
	assert.Equal(t, "Invoice #12 sent - R-<1>", sender.last.Subject)
	assert.Contains(t, sender.last.Html, "1 234,56 kr")
	assert.Contains(t, sender.last.Html, "R-&lt;1&gt;")
	assert.Contains(t, sender.last.Html, "https://api.genin.no/invoices/12/pdf")
}

func TestNotifyInvoiceSent_SenderError(t *testing.T) {
	svc := NewResendServiceWithSender(&fakeSender{err: errors.New("rate limited")}, "a@b.c", "d@e.f", "", quietLogger())

	err := svc.NotifyInvoiceSent(context.Background(), &models.InvoiceListItem{Invoice: models.Invoice{ID: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}
