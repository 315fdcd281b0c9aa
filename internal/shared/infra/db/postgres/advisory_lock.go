package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	sharedDomain "github.com/davicafu/idempolab/internal/shared/domain"
)

// AdvisoryLock implementa elección de líder con pg_try_advisory_lock.
// El lock es de sesión, así que se mantiene una conexión dedicada mientras
// se posee; Release desbloquea en esa misma sesión y devuelve la conexión
// al pool. Es seguro solo dentro de un despliegue (el id es fijo) y de
// corta duración: un batch por adquisición.
type AdvisoryLock struct {
	db     *sql.DB
	lockID int64

	mu   sync.Mutex
	conn *sql.Conn
}

func NewAdvisoryLock(db *sql.DB, lockID int64) *AdvisoryLock {
	return &AdvisoryLock{db: db, lockID: lockID}
}

// TryAcquire intenta el lock sin bloquear. Devuelve false si otra instancia
// ya lo posee.
func (l *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		return false, fmt.Errorf("advisory lock %d already held by this process", l.lockID)
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx,
		`SELECT pg_try_advisory_lock($1)`, l.lockID,
	).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("db error: %w", err)
	}

	if !acquired {
		conn.Close()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

// Release desbloquea y suelta la conexión de sesión.
func (l *AdvisoryLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return nil
	}

	var unlocked bool
	err := l.conn.QueryRowContext(ctx,
		`SELECT pg_advisory_unlock($1)`, l.lockID,
	).Scan(&unlocked)

	closeErr := l.conn.Close()
	l.conn = nil

	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if !unlocked {
		return fmt.Errorf("advisory lock %d was not held by this session", l.lockID)
	}
	return closeErr
}

// Verificación en tiempo de compilación.
var _ sharedDomain.LeaderElector = (*AdvisoryLock)(nil)
