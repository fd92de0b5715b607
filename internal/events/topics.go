package events

// Topic constants for advertising domain events.
const (
	TopicSubscriptionStarted   = "subscription.started"
	TopicSubscriptionCancelled = "subscription.cancelled"
	TopicPaymentRequested      = "payment.requested"
	TopicPaymentConfirmed      = "payment.confirmed"
	TopicPaymentExpired        = "payment.expired"
	TopicBillingCharged        = "billing.charged"
	TopicBillingFailed         = "billing.failed"
	TopicCreditGranted         = "credit.granted"
	TopicCreditExpired         = "credit.expired"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicSubscriptionStarted,
		TopicSubscriptionCancelled,
		TopicPaymentRequested,
		TopicPaymentConfirmed,
		TopicPaymentExpired,
		TopicBillingCharged,
		TopicBillingFailed,
		TopicCreditGranted,
		TopicCreditExpired,
	}
}
