package contracts

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	sagaApp "github.com/davicafu/idempolab/internal/saga/application"
	sagaHttp "github.com/davicafu/idempolab/internal/saga/infra/inbound/http"
	"github.com/davicafu/idempolab/tests/mocks"
)

func newSagaRouter() (*gin.Engine, *mocks.InMemoryPaymentRepo) {
	gin.SetMode(gin.TestMode)

	payments := mocks.NewInMemoryPaymentRepo()
	workflows := mocks.NewInMemoryWorkflowRepo()
	log := zap.NewNop()

	coord := sagaApp.NewCoordinator(workflows, sagaApp.NewPaymentSteps(payments, log), log)
	handler := sagaHttp.NewSagaHandler(coord)

	router := gin.New()
	sagaHttp.RegisterSagaRoutes(router, handler)
	return router, payments
}

func postSaga(router *gin.Engine, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/saga/payments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const sagaBody = `{"amount":"100","currency":"EUR","customer_id":"cust-1"}`

func TestSagaEndpoint_CompletesPayment(t *testing.T) {
	router, payments := newSagaRouter()

	rec := postSaga(router, "saga-key-1", sagaBody)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "completed", body["status"])
	assert.Len(t, payments.Payments, 1)
}

func TestSagaEndpoint_SameKeyReplays(t *testing.T) {
	router, payments := newSagaRouter()

	rec1 := postSaga(router, "saga-key-1", sagaBody)
	assert.Equal(t, http.StatusCreated, rec1.Code)
	rec2 := postSaga(router, "saga-key-1", sagaBody)
	assert.Equal(t, http.StatusCreated, rec2.Code)

	// ✅ La repetición de la clave no crea otro pago
	assert.Len(t, payments.Payments, 1)
}

func TestSagaEndpoint_FailureReturnsConflict(t *testing.T) {
	router, payments := newSagaRouter()
	payments.FailUpdateStatus = assert.AnError

	rec := postSaga(router, "saga-key-1", sagaBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"failed"`)
}

func TestSagaEndpoint_GetByID(t *testing.T) {
	router, _ := newSagaRouter()

	postSaga(router, "saga-key-1", sagaBody)

	req := httptest.NewRequest(http.MethodGet, "/saga/payments/saga-key-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"saga_id":"saga-key-1"`)

	req404 := httptest.NewRequest(http.MethodGet, "/saga/payments/unknown", nil)
	rec404 := httptest.NewRecorder()
	router.ServeHTTP(rec404, req404)
	assert.Equal(t, http.StatusNotFound, rec404.Code)
}
