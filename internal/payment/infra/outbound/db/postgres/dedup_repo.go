package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	paymentDomain "github.com/davicafu/idempolab/internal/payment/domain"
	sharedDomain "github.com/davicafu/idempolab/internal/shared/domain"
)

// DedupLedgerPostgres implementa el ledger de deduplicación del consumidor.
// La escritura del pago y de la fila de dedup comparten transacción: o se
// aplican ambas o ninguna.
type DedupLedgerPostgres struct {
	db *sql.DB
}

func NewDedupLedgerPostgres(db *sql.DB) *DedupLedgerPostgres {
	return &DedupLedgerPostgres{db: db}
}

func (r *DedupLedgerPostgres) Lookup(ctx context.Context, messageID string) (*sharedDomain.DedupRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT message_id, result, processed_at FROM dedup_records WHERE message_id=$1`,
		messageID,
	)

	var rec sharedDomain.DedupRecord
	var resultBytes []byte
	if err := row.Scan(&rec.MessageID, &resultBytes, &rec.ProcessedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // no procesado todavía
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal(resultBytes, &rec.Result); err != nil {
		return nil, fmt.Errorf("invalid JSON result in dedup row %s: %w", messageID, err)
	}
	return &rec, nil
}

func (r *DedupLedgerPostgres) CreateWithDedup(ctx context.Context, p *paymentDomain.Payment, rec sharedDomain.DedupRecord) error {
	resultBytes, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal dedup result: %w", err)
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

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.IdempotencyKey, p.Amount, p.Currency, p.CustomerID, p.Description,
		string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO dedup_records (message_id, result, processed_at)
		 VALUES ($1, $2, $3)`,
		rec.MessageID, resultBytes, rec.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert dedup record: %w", err)
	}

	return tx.Commit()
}

// Verificación en tiempo de compilación.
var _ paymentDomain.DedupLedger = (*DedupLedgerPostgres)(nil)
