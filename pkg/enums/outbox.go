package enums

import "slices"

// OutboxAggregateType maps to the outbox_aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder           OutboxAggregateType = "order"
	AggregateCheckoutSession OutboxAggregateType = "checkout_session"
)

// OutboxEventType maps to the outbox_event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderPaid         OutboxEventType = "order_paid"
	EventPaymentUnrecorded OutboxEventType = "payment_unrecorded"
)

// OutboxDLQErrorReason maps to outbox_dlq_error_reason: why a row stopped
// retrying.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains([]OutboxAggregateType{AggregateOrder, AggregateCheckoutSession}, a)
}

func (e OutboxEventType) IsValid() bool {
	return slices.Contains([]OutboxEventType{EventOrderPaid, EventPaymentUnrecorded}, e)
}
