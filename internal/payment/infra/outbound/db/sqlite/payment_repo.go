package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	paymentDomain "github.com/davicafu/idempolab/internal/payment/domain"
	sharedDomain "github.com/davicafu/idempolab/internal/shared/domain"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// PaymentRepoSQLite es la variante para despliegue local. SQLite también
// ofrece INSERT … ON CONFLICT DO NOTHING, así que la semántica idempotente
// es la misma que en Postgres.
type PaymentRepoSQLite struct {
	db *sql.DB
}

func NewPaymentRepoSQLite(db *sql.DB) *PaymentRepoSQLite {
	return &PaymentRepoSQLite{db: db}
}

const paymentColumns = `id, idempotency_key, amount, currency, customer_id, description, status, created_at, updated_at`

func scanPayment(row interface{ Scan(...interface{}) error }) (*paymentDomain.Payment, error) {
	var p paymentDomain.Payment
	var idStr, status string
	if err := row.Scan(&idStr, &p.IdempotencyKey, &p.Amount, &p.Currency,
		&p.CustomerID, &p.Description, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid uuid in payments row: %w", err)
	}
	p.ID = id
	p.Status = paymentDomain.Status(status)
	return &p, nil
}

func (r *PaymentRepoSQLite) Create(ctx context.Context, p *paymentDomain.Payment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.IdempotencyKey, p.Amount.String(), p.Currency, p.CustomerID,
		p.Description, string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PaymentRepoSQLite) CreateWithOutbox(ctx context.Context, p *paymentDomain.Payment, evt sharedDomain.OutboxEvent) error {
	payloadBytes, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
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
		`INSERT INTO outbox_events (id, aggregate_id, event_type, payload, published, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		evt.ID.String(), evt.AggregateID.String(), evt.EventType, payloadBytes, evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	return tx.Commit()
}

func (r *PaymentRepoSQLite) InsertIfAbsent(ctx context.Context, p *paymentDomain.Payment) (bool, *paymentDomain.Payment, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		p.ID.String(), p.IdempotencyKey, p.Amount.String(), p.Currency, p.CustomerID,
		p.Description, string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return false, nil, fmt.Errorf("db error: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, nil, fmt.Errorf("failed to get RowsAffected: %w", err)
	}

	row, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return false, nil, err
	}
	return inserted > 0, row, nil
}

func (r *PaymentRepoSQLite) InsertIfAbsentByKey(ctx context.Context, p *paymentDomain.Payment) (bool, *paymentDomain.Payment, error) {
	if p.IdempotencyKey == nil {
		return false, nil, errors.New("payment without idempotency key")
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (idempotency_key) DO NOTHING`,
		p.ID.String(), p.IdempotencyKey, p.Amount.String(), p.Currency, p.CustomerID,
		p.Description, string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return false, nil, fmt.Errorf("db error: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, nil, fmt.Errorf("failed to get RowsAffected: %w", err)
	}

	row, err := r.GetByKey(ctx, *p.IdempotencyKey)
	if err != nil {
		return false, nil, err
	}
	return inserted > 0, row, nil
}

func (r *PaymentRepoSQLite) Upsert(ctx context.Context, p *paymentDomain.Payment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			amount      = excluded.amount,
			currency    = excluded.currency,
			description = excluded.description,
			updated_at  = excluded.updated_at`,
		p.ID.String(), p.IdempotencyKey, p.Amount.String(), p.Currency, p.CustomerID,
		p.Description, string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PaymentRepoSQLite) UpdateStatus(ctx context.Context, id uuid.UUID, status paymentDomain.Status) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status=?, updated_at=? WHERE id=?`,
		string(status), time.Now().UTC(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows == 0 {
		return paymentDomain.ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id=?`, id.String())

	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, paymentDomain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PaymentRepoSQLite) GetByKey(ctx context.Context, key string) (*paymentDomain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE idempotency_key=?`, key)

	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, paymentDomain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// ------------------ Inicialización ------------------

func InitSQLite(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		idempotency_key TEXT UNIQUE,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS outbox_events (
		id TEXT PRIMARY KEY,
		aggregate_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		published BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS dedup_records (
		message_id TEXT PRIMARY KEY,
		processed_at TIMESTAMP NOT NULL,
		result TEXT NOT NULL
	)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS idempotency_keys (
		key TEXT PRIMARY KEY,
		response_body TEXT NOT NULL,
		response_status INTEGER NOT NULL,
		expires_at TIMESTAMP NOT NULL
	)`)
	return err
}

// Verificación en tiempo de compilación.
var _ paymentDomain.PaymentRepository = (*PaymentRepoSQLite)(nil)
