package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	sharedDomain "github.com/davicafu/idempolab/internal/shared/domain"
	"github.com/google/uuid"
)

// OutboxRepoPostgres implementa sharedDomain.OutboxRepository.
type OutboxRepoPostgres struct {
	db *sql.DB
}

func NewOutboxRepoPostgres(db *sql.DB) *OutboxRepoPostgres {
	return &OutboxRepoPostgres{db: db}
}

// FetchUnpublished obtiene los eventos sin publicar, por orden de creación.
func (r *OutboxRepoPostgres) FetchUnpublished(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, aggregate_id, event_type, payload, published, created_at
		 FROM outbox_events WHERE published=false ORDER BY created_at LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []sharedDomain.OutboxEvent
	for rows.Next() {
		var evt sharedDomain.OutboxEvent
		var payloadBytes []byte // El payload se lee como JSONB

		if err := rows.Scan(&evt.ID, &evt.AggregateID, &evt.EventType, &payloadBytes, &evt.Published, &evt.CreatedAt); err != nil {
			return nil, err
		}

		var payload map[string]interface{}
		if err := json.Unmarshal(payloadBytes, &payload); err != nil {
			return nil, fmt.Errorf("invalid JSON payload in outbox row %s: %w", evt.ID, err)
		}
		evt.Payload = payload

		events = append(events, evt)
	}

	return events, rows.Err()
}

// MarkPublishedBatch marca todos los ids como publicados en una transacción.
func (r *OutboxRepoPostgres) MarkPublishedBatch(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	var res sql.Result
	res, err = tx.ExecContext(ctx,
		`UPDATE outbox_events SET published=true WHERE id IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	var rows int64
	rows, err = res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows != int64(len(ids)) {
		err = fmt.Errorf("expected %d outbox rows updated, got %d", len(ids), rows)
		return err
	}

	return tx.Commit()
}

// AggregatePublished informa si todos los eventos del agregado están publicados.
func (r *OutboxRepoPostgres) AggregatePublished(ctx context.Context, aggregateID uuid.UUID) (bool, error) {
	var total, published int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE published) FROM outbox_events WHERE aggregate_id=$1`,
		aggregateID,
	).Scan(&total, &published)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return total > 0 && total == published, nil
}

// Verificación en tiempo de compilación.
var _ sharedDomain.OutboxRepository = (*OutboxRepoPostgres)(nil)
