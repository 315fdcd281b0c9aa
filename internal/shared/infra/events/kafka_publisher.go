package events

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/idempolab/internal/shared/infra/platform/bus"
)

// KafkaPublisher publica mensajes durables en Kafka. El message id de la
// aplicación viaja como header para que el consumidor pueda deduplicar.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaPublisher(writer *kafka.Writer, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, msg sharedBus.Message) error {
	kmsg := kafka.Message{
		Key:   []byte(msg.Key),
		Value: msg.Payload,
		Headers: []kafka.Header{
			{Key: "message_id", Value: []byte(msg.MessageID)},
			{Key: "event_type", Value: []byte(msg.EventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, kmsg); err != nil {
		p.log.Error("Error publishing to Kafka", zap.Error(err))
		return err
	}

	p.log.Debug("Event published successfully",
		zap.String("message_id", msg.MessageID),
		zap.String("event_type", msg.EventType),
	)
	return nil
}

// Verificación estática
var _ sharedBus.EventPublisher = (*KafkaPublisher)(nil)
