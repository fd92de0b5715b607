package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-jasa/internal/events"
)

// Notification is an in-app message shown to a user.
type Notification struct {
	ID      uuid.UUID       `json:"id"`
	UserID  uuid.UUID       `json:"userId"`
	Type    string          `json:"type"`
	Title   string          `json:"title"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// SellerNotifier turns advertising events into notifications for the seller's user account.
type SellerNotifier struct {
	Store        Store
	Enabled      bool
	TopicToggles map[string]bool
}

// Notify implements the events.Notifier interface.
func (n SellerNotifier) Notify(ctx context.Context, event events.Event) error {
	if !n.Enabled || n.Store == nil {
		return nil
	}
	if n.TopicToggles != nil {
		if enabled, ok := n.TopicToggles[event.Topic]; ok && !enabled {
			return nil
		}
	}
	payload := map[string]any{}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("seller notify: decode payload: %w", err)
		}
	}
	recipient, ok := extractRecipient(payload)
	if !ok {
		return nil
	}
	title, message := render(event.Topic, payload)
	return n.Store.InsertNotification(ctx, Notification{
		UserID:  recipient,
		Type:    event.Topic,
		Title:   title,
		Message: message,
		Data:    event.Payload,
	})
}

func extractRecipient(payload map[string]any) (uuid.UUID, bool) {
	raw, ok := payload["userId"].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func render(topic string, payload map[string]any) (string, string) {
	service := stringField(payload, "serviceTitle")
	if service == "" {
		service = "your service"
	}
	switch topic {
	case events.TopicPaymentRequested:
		msg := fmt.Sprintf("Please transfer %s KRW to %s %s (%s) by %s. Depositor name: %s.",
			amountField(payload, "amount"), stringField(payload, "bankName"), stringField(payload, "bankAccount"),
			stringField(payload, "bankHolder"), stringField(payload, "deadline"), stringField(payload, "depositorReference"))
		return "Bank transfer requested", msg
	case events.TopicPaymentConfirmed:
		return "Payment confirmed", fmt.Sprintf("Advertising for %s is now active.", service)
	case events.TopicPaymentExpired:
		return "Payment window closed", fmt.Sprintf("The bank transfer for %s was not received in time and the request expired.", service)
	case events.TopicSubscriptionStarted:
		return "Advertising started", fmt.Sprintf("Advertising for %s started for %s months.", service, amountField(payload, "months"))
	case events.TopicSubscriptionCancelled:
		return "Advertising cancelled", fmt.Sprintf("Advertising for %s was cancelled.", service)
	case events.TopicBillingCharged:
		return "Monthly billing", fmt.Sprintf("%s KRW of credit was charged for %s.", amountField(payload, "amount"), service)
	case events.TopicBillingFailed:
		return "Billing failed", fmt.Sprintf("Credit balance is short by %s KRW for %s. Advertising is paused until payment.", amountField(payload, "shortfall"), service)
	case events.TopicCreditGranted:
		return "Credit granted", fmt.Sprintf("%s KRW of advertising credit was added to your account.", amountField(payload, "amount"))
	case events.TopicCreditExpired:
		return "Credit expired", fmt.Sprintf("%s KRW of advertising credit expired.", amountField(payload, "amount"))
	default:
		return "Notification", topic
	}
}

func stringField(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func amountField(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case float64:
		return fmt.Sprintf("%.0f", v)
	case string:
		return v
	default:
		return "0"
	}
}
