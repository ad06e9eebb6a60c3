package payloads

import "github.com/google/uuid"

// VerificationCodeIssuedEvent carries the data the SMS worker needs to deliver
// an OTP. The code itself rides in the payload so the worker never re-reads
// the codes table.
type VerificationCodeIssuedEvent struct {
	CodeID uuid.UUID `json:"codeId"`
	Phone  string    `json:"phone"`
	Code   string    `json:"code"`
}

// PasswordResetRequestedEvent mirrors the OTP event for the reset flow.
type PasswordResetRequestedEvent struct {
	CodeID uuid.UUID `json:"codeId"`
	Phone  string    `json:"phone"`
	Code   string    `json:"code"`
}

// OrderCreatedEvent announces a committed checkout.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	Phone       string    `json:"phone"`
}
