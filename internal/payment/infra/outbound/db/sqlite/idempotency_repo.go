package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	paymentDomain "github.com/davicafu/idempolab/internal/payment/domain"
)

// IdemRepoSQLite es la pata duradera local del almacén de resultados.
// Misma semántica que la variante Postgres: expiración lógica en lectura.
type IdemRepoSQLite struct {
	db *sql.DB
}

func NewIdemRepoSQLite(db *sql.DB) *IdemRepoSQLite {
	return &IdemRepoSQLite{db: db}
}

func (r *IdemRepoSQLite) Get(ctx context.Context, key string) (*paymentDomain.StoredResult, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT response_body, response_status, expires_at FROM idempotency_keys WHERE key=?`,
		key,
	)

	var res paymentDomain.StoredResult
	var bodyStr string
	var expiresAt time.Time
	if err := row.Scan(&bodyStr, &res.StatusCode, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	res.Body = json.RawMessage(bodyStr)

	if !expiresAt.After(time.Now().UTC()) {
		return nil, nil // expirada lógicamente
	}
	return &res, nil
}

func (r *IdemRepoSQLite) Save(ctx context.Context, key string, res paymentDomain.StoredResult, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO idempotency_keys (key, response_body, response_status, expires_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (key) DO NOTHING`,
		key, string(res.Body), res.StatusCode, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Verificación en tiempo de compilación.
var _ paymentDomain.DurableResultStore = (*IdemRepoSQLite)(nil)
