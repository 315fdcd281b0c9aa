package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	paymentDomain "github.com/davicafu/idempolab/internal/payment/domain"
	sharedDomain "github.com/davicafu/idempolab/internal/shared/domain"
	"github.com/google/uuid"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PaymentRepoPostgres implementa paymentDomain.PaymentRepository. Toda la
// resolución de conflictos la hace Postgres con INSERT … ON CONFLICT: el
// motor serializa los inserts concurrentes con la misma clave.
type PaymentRepoPostgres struct {
	db *sql.DB
}

func NewPaymentRepoPostgres(db *sql.DB) *PaymentRepoPostgres {
	return &PaymentRepoPostgres{db: db}
}

const paymentColumns = `id, idempotency_key, amount, currency, customer_id, description, status, created_at, updated_at`

func scanPayment(row interface{ Scan(...interface{}) error }) (*paymentDomain.Payment, error) {
	var p paymentDomain.Payment
	var status string
	if err := row.Scan(&p.ID, &p.IdempotencyKey, &p.Amount, &p.Currency,
		&p.CustomerID, &p.Description, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = paymentDomain.Status(status)
	return &p, nil
}

// ------------------ Helper DRY para insertar en outbox ------------------

func insertOutboxTx(ctx context.Context, tx *sql.Tx, evt sharedDomain.OutboxEvent) error {
	payloadBytes, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (id, aggregate_id, event_type, payload, published, created_at)
		 VALUES ($1, $2, $3, $4, false, $5)`,
		evt.ID, evt.AggregateID, evt.EventType, payloadBytes, evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// ------------------ Escritura ------------------

// Create inserta el pago sin semántica idempotente.
func (r *PaymentRepoPostgres) Create(ctx context.Context, p *paymentDomain.Payment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.IdempotencyKey, p.Amount, p.Currency, p.CustomerID, p.Description,
		string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// CreateWithOutbox inserta pago y evento en transacción.
func (r *PaymentRepoPostgres) CreateWithOutbox(ctx context.Context, p *paymentDomain.Payment, evt sharedDomain.OutboxEvent) error {
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

	if err = insertOutboxTx(ctx, tx, evt); err != nil {
		return err
	}

	return tx.Commit()
}

// InsertIfAbsent hace el INSERT atómico por id y lee la fila autoritativa.
func (r *PaymentRepoPostgres) InsertIfAbsent(ctx context.Context, p *paymentDomain.Payment) (bool, *paymentDomain.Payment, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO NOTHING`,
		p.ID, p.IdempotencyKey, p.Amount, p.Currency, p.CustomerID, p.Description,
		string(p.Status), p.CreatedAt, p.UpdatedAt,
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

// InsertIfAbsentByKey delega el conflicto en la constraint única de idempotency_key.
func (r *PaymentRepoPostgres) InsertIfAbsentByKey(ctx context.Context, p *paymentDomain.Payment) (bool, *paymentDomain.Payment, error) {
	if p.IdempotencyKey == nil {
		return false, nil, errors.New("payment without idempotency key")
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (idempotency_key) DO NOTHING`,
		p.ID, p.IdempotencyKey, p.Amount, p.Currency, p.CustomerID, p.Description,
		string(p.Status), p.CreatedAt, p.UpdatedAt,
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

// Upsert aplica INSERT … ON CONFLICT (id) DO UPDATE (semántica PUT).
func (r *PaymentRepoPostgres) Upsert(ctx context.Context, p *paymentDomain.Payment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
			amount      = EXCLUDED.amount,
			currency    = EXCLUDED.currency,
			description = EXCLUDED.description,
			updated_at  = EXCLUDED.updated_at`,
		p.ID, p.IdempotencyKey, p.Amount, p.Currency, p.CustomerID, p.Description,
		string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// UpdateStatus cambia el estado del pago.
func (r *PaymentRepoPostgres) UpdateStatus(ctx context.Context, id uuid.UUID, status paymentDomain.Status) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status=$1, updated_at=NOW() WHERE id=$2`,
		string(status), id,
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

// ------------------ Lectura ------------------

func (r *PaymentRepoPostgres) GetByID(ctx context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id)

	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, paymentDomain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PaymentRepoPostgres) GetByKey(ctx context.Context, key string) (*paymentDomain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE idempotency_key=$1`, key)

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

func InitPostgres(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY,
		idempotency_key VARCHAR(255) UNIQUE,
		amount NUMERIC(12,2) NOT NULL,
		currency VARCHAR(3) NOT NULL,
		customer_id VARCHAR(255) NOT NULL,
		description TEXT,
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS outbox_events (
		id UUID PRIMARY KEY,
		aggregate_id UUID NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		payload JSONB NOT NULL,
		published BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS idempotency_keys (
		key VARCHAR(255) PRIMARY KEY,
		response_body JSONB NOT NULL,
		response_status INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS dedup_records (
		message_id VARCHAR(255) PRIMARY KEY,
		processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		result JSONB NOT NULL
	)`)
	return err
}

// Verificación en tiempo de compilación.
var _ paymentDomain.PaymentRepository = (*PaymentRepoPostgres)(nil)
