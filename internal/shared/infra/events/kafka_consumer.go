package events

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/idempolab/internal/shared/infra/platform/bus"
)

// MessageHandler procesa un mensaje entregado. Un retorno nil hace commit
// (ack) del offset; un error deja el mensaje sin ack para que el broker lo
// re-entregue. El handler decide tratar un duplicado como éxito.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg sharedBus.Message) error
}

// ConsumerAdapter es el "oído" que escucha en Kafka. Usa FetchMessage +
// CommitMessages para desacoplar el ack del retorno del handler.
type ConsumerAdapter struct {
	reader  *kafka.Reader
	handler MessageHandler
	log     *zap.Logger
}

func NewConsumerAdapter(reader *kafka.Reader, handler MessageHandler, log *zap.Logger) *ConsumerAdapter {
	return &ConsumerAdapter{
		reader:  reader,
		handler: handler,
		log:     log,
	}
}

// Start inicia el bucle de consumo de mensajes en una goroutine.
func (c *ConsumerAdapter) Start(ctx context.Context) {
	c.log.Info("🎧 Iniciando consumidor de Kafka...",
		zap.String("topic", c.reader.Config().Topic),
		zap.Strings("brokers", c.reader.Config().Brokers),
	)

	go func() {
		for {
			kmsg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				// Si el contexto se cancela, el error es normal y salimos limpiamente.
				if ctx.Err() != nil {
					c.log.Info("Consumidor de Kafka detenido.", zap.String("topic", c.reader.Config().Topic))
					return
				}
				c.log.Error("Error al leer mensaje de Kafka", zap.Error(err))
				continue
			}

			msg := sharedBus.Message{
				Key:     string(kmsg.Key),
				Payload: kmsg.Value,
			}
			for _, h := range kmsg.Headers {
				switch h.Key {
				case "message_id":
					msg.MessageID = string(h.Value)
				case "event_type":
					msg.EventType = string(h.Value)
				}
			}

			if err := c.handler.HandleMessage(ctx, msg); err != nil {
				// Sin commit: el broker re-entregará el mensaje.
				c.log.Warn("Mensaje sin ack, se espera redelivery",
					zap.String("message_id", msg.MessageID),
					zap.Error(err),
				)
				continue
			}

			if err := c.reader.CommitMessages(ctx, kmsg); err != nil {
				c.log.Error("Error al hacer commit del offset", zap.Error(err))
			}
		}
	}()
}
