package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	sharedBus "github.com/davicafu/idempolab/internal/shared/infra/platform/bus"
)

// InMemoryEventBus implementa un bus de eventos en proceso para un topic.
// Útil en despliegues locales sin broker: los mensajes publicados se
// reparten a los suscriptores por canales de Go.
type InMemoryEventBus struct {
	subscribers []chan sharedBus.Message
	mu          sync.RWMutex
	topic       string
}

// Verifica en tiempo de compilación que cumple la interfaz
var _ sharedBus.EventPublisher = (*InMemoryEventBus)(nil)

func NewInMemoryEventBus(topic string) *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make([]chan sharedBus.Message, 0),
		topic:       topic,
	}
}

// Publish reparte el mensaje a todos los suscriptores sin bloquear al
// publicador. Un suscriptor con el buffer lleno pierde el mensaje, igual
// que un broker con at-most-once: el dedup del consumidor no se ve afectado.
func (b *InMemoryEventBus) Publish(ctx context.Context, msg sharedBus.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, subChan := range b.subscribers {
		select {
		case subChan <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registra un nuevo oyente en este bus.
func (b *InMemoryEventBus) Subscribe(bufferSize int) <-chan sharedBus.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	subChan := make(chan sharedBus.Message, bufferSize)
	b.subscribers = append(b.subscribers, subChan)
	return subChan
}

// BackgroundConsumerChan consume mensajes de un canal en una goroutine,
// entregándolos al handler. Es el equivalente en memoria del adaptador de
// Kafka; los errores del handler se loguean y el mensaje se descarta.
func BackgroundConsumerChan(ctx context.Context, ch <-chan sharedBus.Message, handler MessageHandler, log *zap.Logger) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := handler.HandleMessage(ctx, msg); err != nil {
					log.Error("Error procesando mensaje en memoria",
						zap.String("message_id", msg.MessageID),
						zap.Error(err),
					)
				}
			}
		}
	}()
}
