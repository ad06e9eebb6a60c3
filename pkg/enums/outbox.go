package enums

// OutboxEventType enumerates the domain events routed through the outbox.
type OutboxEventType string

const (
	EventVerificationCodeIssued OutboxEventType = "verification.code_issued"
	EventPasswordResetRequested OutboxEventType = "password.reset_requested"
	EventOrderCreated           OutboxEventType = "order.created"
)

// OutboxAggregateType names the aggregate an event belongs to.
type OutboxAggregateType string

const (
	AggregateVerificationCode OutboxAggregateType = "verification_code"
	AggregateOrder            OutboxAggregateType = "order"
)
