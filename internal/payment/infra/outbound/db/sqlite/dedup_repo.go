package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	paymentDomain "github.com/davicafu/idempolab/internal/payment/domain"
	sharedDomain "github.com/davicafu/idempolab/internal/shared/domain"
)

// DedupLedgerSQLite es la variante local del ledger de deduplicación.
type DedupLedgerSQLite struct {
	db *sql.DB
}

func NewDedupLedgerSQLite(db *sql.DB) *DedupLedgerSQLite {
	return &DedupLedgerSQLite{db: db}
}

func (r *DedupLedgerSQLite) Lookup(ctx context.Context, messageID string) (*sharedDomain.DedupRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT message_id, result, processed_at FROM dedup_records WHERE message_id=?`,
		messageID,
	)

	var rec sharedDomain.DedupRecord
	var resultStr string
	if err := row.Scan(&rec.MessageID, &resultStr, &rec.ProcessedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // no procesado todavía
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal([]byte(resultStr), &rec.Result); err != nil {
		return nil, fmt.Errorf("invalid JSON result in dedup row %s: %w", messageID, err)
	}
	return &rec, nil
}

func (r *DedupLedgerSQLite) CreateWithDedup(ctx context.Context, p *paymentDomain.Payment, rec sharedDomain.DedupRecord) error {
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
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.IdempotencyKey, p.Amount.String(), p.Currency, p.CustomerID,
		p.Description, string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO dedup_records (message_id, result, processed_at)
		 VALUES (?, ?, ?)`,
		rec.MessageID, string(resultBytes), rec.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert dedup record: %w", err)
	}

	return tx.Commit()
}

// Verificación en tiempo de compilación.
var _ paymentDomain.DedupLedger = (*DedupLedgerSQLite)(nil)
