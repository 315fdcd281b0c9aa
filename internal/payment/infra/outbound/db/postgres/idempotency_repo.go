package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	paymentDomain "github.com/davicafu/idempolab/internal/payment/domain"
)

// IdemRepoPostgres es la pata duradera del almacén de resultados: permite
// recuperar replays si la cache rápida está fría. La expiración es lógica:
// una fila expirada se trata como ausente (no hay proceso de borrado activo).
type IdemRepoPostgres struct {
	db *sql.DB
}

func NewIdemRepoPostgres(db *sql.DB) *IdemRepoPostgres {
	return &IdemRepoPostgres{db: db}
}

func (r *IdemRepoPostgres) Get(ctx context.Context, key string) (*paymentDomain.StoredResult, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT response_body, response_status, expires_at FROM idempotency_keys WHERE key=$1`,
		key,
	)

	var res paymentDomain.StoredResult
	var expiresAt time.Time
	if err := row.Scan(&res.Body, &res.StatusCode, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if !expiresAt.After(time.Now().UTC()) {
		return nil, nil // expirada lógicamente
	}
	return &res, nil
}

// Save inserta la fila si no existe; las filas no se mutan tras su creación.
func (r *IdemRepoPostgres) Save(ctx context.Context, key string, res paymentDomain.StoredResult, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO idempotency_keys (key, response_body, response_status, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO NOTHING`,
		key, []byte(res.Body), res.StatusCode, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Verificación en tiempo de compilación.
var _ paymentDomain.DurableResultStore = (*IdemRepoPostgres)(nil)
