package bus

import (
	"context"
)

// Message es la unidad que viaja por el broker. MessageID identifica la
// entrega de forma estable (el id del evento de outbox) y es lo que usa el
// consumidor para deduplicar; Key decide la partición.
type Message struct {
	MessageID string
	EventType string
	Key       string
	Payload   []byte
}

// EventPublisher publica mensajes durables en el broker.
type EventPublisher interface {
	Publish(ctx context.Context, msg Message) error
}
