package notifications

import (
	"encoding/json"
	"fmt"

	"github.com/ulugbekov/savdo-backend/pkg/db/models"
	"github.com/ulugbekov/savdo-backend/pkg/enums"
	"github.com/ulugbekov/savdo-backend/pkg/outbox"
	"github.com/ulugbekov/savdo-backend/pkg/outbox/payloads"
)

// message is a rendered SMS ready for the gateway.
type message struct {
	Phone string
	Text  string
}

// renderMessage turns an outbox row into SMS copy. Unknown event types are an
// error; such rows should never reach the dispatcher.
func renderMessage(event *models.OutboxEvent) (*message, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, fmt.Errorf("decoding payload envelope: %w", err)
	}

	switch event.EventType {
	case enums.EventVerificationCodeIssued:
		var data payloads.VerificationCodeIssuedEvent
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", event.EventType, err)
		}
		return &message{
			Phone: data.Phone,
			Text:  fmt.Sprintf("Tasdiqlash kodi: %s\nBu kod 5 daqiqa davomida amal qiladi.", data.Code),
		}, nil

	case enums.EventPasswordResetRequested:
		var data payloads.PasswordResetRequestedEvent
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", event.EventType, err)
		}
		return &message{
			Phone: data.Phone,
			Text:  fmt.Sprintf("Parol tiklash kodi: %s\nBu kod 5 daqiqa davomida amal qiladi.", data.Code),
		}, nil

	case enums.EventOrderCreated:
		var data payloads.OrderCreatedEvent
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", event.EventType, err)
		}
		return &message{
			Phone: data.Phone,
			Text:  fmt.Sprintf("Buyurtmangiz #%s qabul qilindi. Tez orada siz bilan bog'lanamiz.", data.OrderNumber),
		}, nil

	default:
		return nil, fmt.Errorf("no SMS template for event type %q", event.EventType)
	}
}
