package payment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fulfillment-app/config"
	"fulfillment-app/internal/domain/orders"
	"fulfillment-app/internal/infra/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *notifyFixture) doSession(method, path, session string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if session != "" {
		req.Header.Set("X-Test-Session", session)
	}
	f.router.ServeHTTP(w, req)
	return w
}

func TestInitiate_ReturnsSignedForm(t *testing.T) {
	f := newNotifyFixture(t)
	order := f.createPendingOrder(t)

	w := f.doSession(http.MethodPost, "/payment/initiate?order="+order.OrderNumber, *order.SessionID)
	require.Equal(t, http.StatusOK, w.Code)

	var form gateway.PaymentForm
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &form))

	byName := map[string]string{}
	for _, fld := range form.Fields {
		byName[fld.Name] = fld.Value
	}
	assert.Equal(t, order.OrderNumber, byName["m_payment_id"])
	assert.Equal(t, "25.00", byName["amount"])
	assert.NotEmpty(t, byName["signature"])

	// the round trip stayed read-only
	reread, err := f.ledger.Get(order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, reread.Status)
}

func TestInitiate_DeniedForOtherSession(t *testing.T) {
	f := newNotifyFixture(t)
	order := f.createPendingOrder(t)

	w := f.doSession(http.MethodPost, "/payment/initiate?order="+order.OrderNumber, "sess-intruder")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Access denied")
}

func TestInitiate_RejectsSettledOrder(t *testing.T) {
	f := newNotifyFixture(t)
	order := f.createPendingOrder(t)
	_, err := f.ledger.Transition(order.OrderNumber, orders.StatusCompleted, "gateway:test")
	require.NoError(t, err)

	w := f.doSession(http.MethodPost, "/payment/initiate?order="+order.OrderNumber, *order.SessionID)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Payment cannot be started")
}

func TestReturnAndCancel_NeverMoveState(t *testing.T) {
	f := newNotifyFixture(t)
	config.APP_URL = "http://localhost:5173"
	order := f.createPendingOrder(t)

	w := f.doSession(http.MethodGet, "/payment/return?order="+order.OrderNumber, "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), order.OrderNumber)
	assert.Contains(t, w.Header().Get("Location"), "payment=processing")

	w = f.doSession(http.MethodGet, "/payment/cancel?order="+order.OrderNumber, "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "payment=cancelled")

	reread, err := f.ledger.Get(order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, reread.Status)
}
