package domain

import (
	"time"
)

// DedupRecord es una fila del ledger de deduplicación del consumidor.
// La mera existencia de la fila significa "este message id ya fue procesado";
// se inserta en la misma transacción que el efecto de negocio.
type DedupRecord struct {
	MessageID   string                 `json:"message_id"`
	Result      map[string]interface{} `json:"result"`
	ProcessedAt time.Time              `json:"processed_at"`
}
