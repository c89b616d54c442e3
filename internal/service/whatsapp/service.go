package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/staffops/internal/pricing"
	client "github.com/mamadbah2/staffops/pkg/clients/whatsapp"
)

const sendTimeout = 10 * time.Second

// Notifier pushes short operational messages to the finance contact.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// FinanceNotifier is the production implementation backed by WhatsApp Cloud API.
type FinanceNotifier struct {
	recipient string
	client    client.Client
	logger    *zap.Logger
}

// NewFinanceNotifier wires a new notifier instance.
func NewFinanceNotifier(recipient string, c client.Client, logger *zap.Logger) *FinanceNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FinanceNotifier{recipient: recipient, client: c, logger: logger}
}

// Notify sends message to the finance contact.
func (n *FinanceNotifier) Notify(ctx context.Context, message string) error {
	if message == "" {
		return errors.New("empty notification")
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	resp, err := n.client.SendTextMessage(ctxWithTimeout, client.SendTextMessageRequest{
		To:   n.recipient,
		Body: message,
	})
	if err != nil {
		return fmt.Errorf("notify finance: %w", err)
	}

	n.logger.Info("finance notified", zap.String("message_id", resp.MessageID()))
	return nil
}

// InvoiceMessage formats the notification sent after an invoice is generated.
func InvoiceMessage(invoiceNumber string, totals pricing.Totals) string {
	return fmt.Sprintf("Invoice %s generated: %d timesheets, %.2f hours, billed $%.2f, profit $%.2f (%.1f%% margin).",
		invoiceNumber, totals.Count, totals.Hours, totals.ClientAmount, totals.Profit, totals.MarginPct)
}
