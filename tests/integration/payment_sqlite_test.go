package integration

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	_ "modernc.org/sqlite"

	paymentDomain "github.com/davicafu/idempolab/internal/payment/domain"
	paymentSqlite "github.com/davicafu/idempolab/internal/payment/infra/outbound/db/sqlite"
	sharedDomain "github.com/davicafu/idempolab/internal/shared/domain"
	sharedSqlite "github.com/davicafu/idempolab/internal/shared/infra/db/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	assert.NoError(t, err)
	assert.NoError(t, paymentSqlite.InitSQLite(db))
	return db
}

func newPayment(key *string) *paymentDomain.Payment {
	return paymentDomain.NewPayment(paymentDomain.Request{
		Amount:     decimal.NewFromFloat(42.50),
		Currency:   "EUR",
		CustomerID: "cust-1",
	}, key, paymentDomain.StatusCompleted)
}

func TestPaymentSQLite_InsertIfAbsent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := paymentSqlite.NewPaymentRepoSQLite(db)

	p := newPayment(nil)
	inserted, row, err := repo.InsertIfAbsent(context.Background(), p)
	assert.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, p.ID, row.ID)

	// ✅ El duplicado por id no inserta y devuelve la fila original
	dup := newPayment(nil)
	dup.ID = p.ID
	inserted, row, err = repo.InsertIfAbsent(context.Background(), dup)
	assert.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, p.ID, row.ID)
	assert.Equal(t, "42.5", row.Amount.String())
}

func TestPaymentSQLite_InsertIfAbsentByKey(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := paymentSqlite.NewPaymentRepoSQLite(db)

	key := "key-1"
	inserted, p1, err := repo.InsertIfAbsentByKey(context.Background(), newPayment(&key))
	assert.NoError(t, err)
	assert.True(t, inserted)

	// ✅ La constraint única de idempotency_key absorbe el duplicado
	inserted, p2, err := repo.InsertIfAbsentByKey(context.Background(), newPayment(&key))
	assert.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, p1.ID, p2.ID)

	got, err := repo.GetByKey(context.Background(), key)
	assert.NoError(t, err)
	assert.Equal(t, p1.ID, got.ID)
}

func TestPaymentSQLite_UpsertAndStatus(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := paymentSqlite.NewPaymentRepoSQLite(db)

	p := newPayment(nil)
	assert.NoError(t, repo.Upsert(context.Background(), p))

	p.Currency = "USD"
	assert.NoError(t, repo.Upsert(context.Background(), p))

	got, err := repo.GetByID(context.Background(), p.ID)
	assert.NoError(t, err)
	assert.Equal(t, "USD", got.Currency)

	assert.NoError(t, repo.UpdateStatus(context.Background(), p.ID, paymentDomain.StatusFailed))
	got, err = repo.GetByID(context.Background(), p.ID)
	assert.NoError(t, err)
	assert.Equal(t, paymentDomain.StatusFailed, got.Status)

	_, err = repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, paymentDomain.ErrPaymentNotFound)
}

func TestOutboxSQLite_FetchMarkAndAggregate(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	payments := paymentSqlite.NewPaymentRepoSQLite(db)
	outbox := sharedSqlite.NewOutboxRepoSQLite(db)

	p := newPayment(nil)
	evt := sharedDomain.OutboxEvent{
		ID:          uuid.New(),
		AggregateID: p.ID,
		EventType:   "payment.created",
		Payload:     map[string]interface{}{"payment_id": p.ID.String()},
		CreatedAt:   time.Now().UTC(),
	}
	assert.NoError(t, payments.CreateWithOutbox(context.Background(), p, evt))

	events, err := outbox.FetchUnpublished(context.Background(), 10)
	assert.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, evt.ID, events[0].ID)
	assert.Equal(t, p.ID.String(), events[0].Payload["payment_id"])

	// Antes de publicar, el agregado no está completo.
	published, err := outbox.AggregatePublished(context.Background(), p.ID)
	assert.NoError(t, err)
	assert.False(t, published)

	assert.NoError(t, outbox.MarkPublishedBatch(context.Background(), []uuid.UUID{evt.ID}))

	events, err = outbox.FetchUnpublished(context.Background(), 10)
	assert.NoError(t, err)
	assert.Empty(t, events)

	published, err = outbox.AggregatePublished(context.Background(), p.ID)
	assert.NoError(t, err)
	assert.True(t, published)
}

func TestDedupLedgerSQLite_AtomicWrite(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ledger := paymentSqlite.NewDedupLedgerSQLite(db)

	rec, err := ledger.Lookup(context.Background(), "msg-1")
	assert.NoError(t, err)
	assert.Nil(t, rec)

	p := newPayment(nil)
	err = ledger.CreateWithDedup(context.Background(), p, sharedDomain.DedupRecord{
		MessageID:   "msg-1",
		Result:      map[string]interface{}{"payment_id": p.ID.String()},
		ProcessedAt: time.Now().UTC(),
	})
	assert.NoError(t, err)

	rec, err = ledger.Lookup(context.Background(), "msg-1")
	assert.NoError(t, err)
	assert.NotNil(t, rec)
	assert.Equal(t, p.ID.String(), rec.Result["payment_id"])
}

func TestIdemRepoSQLite_LogicalExpiry(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := paymentSqlite.NewIdemRepoSQLite(db)

	res := paymentDomain.StoredResult{Body: []byte(`{"id":"p-1"}`), StatusCode: http.StatusCreated}
	assert.NoError(t, repo.Save(context.Background(), "key-live", res, time.Now().UTC().Add(time.Hour)))
	assert.NoError(t, repo.Save(context.Background(), "key-dead", res, time.Now().UTC().Add(-time.Hour)))

	got, err := repo.Get(context.Background(), "key-live")
	assert.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, http.StatusCreated, got.StatusCode)

	// ✅ La fila expirada se trata como ausente
	got, err = repo.Get(context.Background(), "key-dead")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestLocalElector_Exclusivity(t *testing.T) {
	elector := sharedSqlite.NewLocalElector()

	ok, err := elector.TryAcquire(context.Background())
	assert.NoError(t, err)
	assert.True(t, ok)

	// ✅ Mientras está tomado, nadie más lo consigue
	ok, err = elector.TryAcquire(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, elector.Release(context.Background()))
	ok, err = elector.TryAcquire(context.Background())
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, elector.Release(context.Background()))
}
