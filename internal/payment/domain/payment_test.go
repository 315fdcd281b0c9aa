package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDeriveID_Deterministic(t *testing.T) {
	req := Request{
		Amount:     decimal.NewFromFloat(99.99),
		Currency:   "EUR",
		CustomerID: "cust-123",
	}
	day := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

	id1 := DeriveID(req, day)
	id2 := DeriveID(req, day)

	// ✅ Misma petición, mismo día → mismo identificador
	assert.Equal(t, id1, id2)
}

func TestDeriveID_HourDoesNotMatter(t *testing.T) {
	req := Request{
		Amount:     decimal.NewFromFloat(50),
		Currency:   "EUR",
		CustomerID: "cust-123",
	}

	morning := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	night := time.Date(2025, 6, 15, 23, 59, 0, 0, time.UTC)

	// El bucket es el día natural, no la hora.
	assert.Equal(t, DeriveID(req, morning), DeriveID(req, night))
}

func TestDeriveID_ChangesWithDay(t *testing.T) {
	req := Request{
		Amount:     decimal.NewFromFloat(50),
		Currency:   "EUR",
		CustomerID: "cust-123",
	}

	day1 := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)

	assert.NotEqual(t, DeriveID(req, day1), DeriveID(req, day2))
}

func TestDeriveID_ChangesWithContent(t *testing.T) {
	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	base := Request{Amount: decimal.NewFromFloat(50), Currency: "EUR", CustomerID: "cust-123"}

	otherAmount := base
	otherAmount.Amount = decimal.NewFromFloat(51)
	otherCustomer := base
	otherCustomer.CustomerID = "cust-456"

	assert.NotEqual(t, DeriveID(base, day), DeriveID(otherAmount, day))
	assert.NotEqual(t, DeriveID(base, day), DeriveID(otherCustomer, day))
}

func TestNewPayment(t *testing.T) {
	key := "key-abc"
	desc := "café"
	p := NewPayment(Request{
		Amount:      decimal.NewFromFloat(3.50),
		Currency:    "EUR",
		CustomerID:  "cust-1",
		Description: &desc,
	}, &key, StatusCompleted)

	assert.NotEqual(t, "", p.ID.String())
	assert.Equal(t, &key, p.IdempotencyKey)
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, "3.5", p.Amount.String())
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "idem:abc", ResultCacheKey("abc"))
	assert.Equal(t, "lock:abc", LockKey("abc"))
}
