package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	sharedDomain "github.com/davicafu/idempolab/internal/shared/domain"
	"github.com/google/uuid"
)

// OutboxRepoSQLite implementa sharedDomain.OutboxRepository para el
// despliegue local de un solo proceso.
type OutboxRepoSQLite struct {
	db *sql.DB
}

func NewOutboxRepoSQLite(db *sql.DB) *OutboxRepoSQLite {
	return &OutboxRepoSQLite{db: db}
}

func (r *OutboxRepoSQLite) FetchUnpublished(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, aggregate_id, event_type, payload, published, created_at
		 FROM outbox_events WHERE published=0 ORDER BY created_at LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []sharedDomain.OutboxEvent
	for rows.Next() {
		var evt sharedDomain.OutboxEvent
		var idStr, aggStr string
		var payloadBytes []byte

		if err := rows.Scan(&idStr, &aggStr, &evt.EventType, &payloadBytes, &evt.Published, &evt.CreatedAt); err != nil {
			return nil, err
		}

		if evt.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("invalid uuid in outbox row: %w", err)
		}
		if evt.AggregateID, err = uuid.Parse(aggStr); err != nil {
			return nil, fmt.Errorf("invalid aggregate uuid in outbox row %s: %w", idStr, err)
		}

		var payload map[string]interface{}
		if err := json.Unmarshal(payloadBytes, &payload); err != nil {
			return nil, fmt.Errorf("invalid JSON payload in outbox row %s: %w", idStr, err)
		}
		evt.Payload = payload

		events = append(events, evt)
	}

	return events, rows.Err()
}

func (r *OutboxRepoSQLite) MarkPublishedBatch(ctx context.Context, ids []uuid.UUID) error {
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
		placeholders[i] = "?"
		args[i] = id.String()
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE outbox_events SET published=1 WHERE id IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return tx.Commit()
}

func (r *OutboxRepoSQLite) AggregatePublished(ctx context.Context, aggregateID uuid.UUID) (bool, error) {
	var total, published int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(published), 0) FROM outbox_events WHERE aggregate_id=?`,
		aggregateID.String(),
	).Scan(&total, &published)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return total > 0 && total == published, nil
}

// LocalElector es la elección de líder trivial para un despliegue de un solo
// proceso: un TryLock en memoria. SQLite no ofrece advisory locks de sesión.
type LocalElector struct {
	mu sync.Mutex
}

func NewLocalElector() *LocalElector {
	return &LocalElector{}
}

func (e *LocalElector) TryAcquire(ctx context.Context) (bool, error) {
	return e.mu.TryLock(), nil
}

func (e *LocalElector) Release(ctx context.Context) error {
	e.mu.Unlock()
	return nil
}

// Verificación en tiempo de compilación.
var _ sharedDomain.OutboxRepository = (*OutboxRepoSQLite)(nil)
var _ sharedDomain.LeaderElector = (*LocalElector)(nil)
