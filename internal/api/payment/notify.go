package payment

import (
	"errors"
	"io"
	"net/http"

	"fulfillment-app/internal/domain/orders"
	"fulfillment-app/internal/infra/gateway"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxNotifyBody = 65536

// POST /payment/notify
//
// The only authoritative payment path. Verifies the ITN signature before
// anything else, then applies the mapped transition idempotently. Replies
// carry no detail for the gateway beyond the status code: 2xx acknowledges
// (including redeliveries), non-2xx asks the gateway to retry. A bad
// signature is logged and acknowledged so it is never retried.
func (h *Handler) Notify(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxNotifyBody)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Warn("notify body read failed", zap.Error(err))
		c.String(http.StatusServiceUnavailable, "retry")
		return
	}

	fields, err := h.adapter.VerifyNotification(string(body))
	if err != nil {
		h.log.Warn("notify signature rejected",
			zap.String("remote", c.ClientIP()),
			zap.Error(err))
		h.ledger.RecordNotification(&orders.GatewayNotification{
			OrderNumber:      gateway.Get(fieldsOrEmpty(string(body)), "m_payment_id"),
			GatewayPaymentID: gateway.Get(fieldsOrEmpty(string(body)), "pf_payment_id"),
			PaymentStatus:    gateway.Get(fieldsOrEmpty(string(body)), "payment_status"),
			Accepted:         false,
			Detail:           "invalid signature",
		})
		// acknowledged on purpose: an invalid signature must be dropped,
		// not retried
		c.String(http.StatusOK, "ignored")
		return
	}

	orderNumber := gateway.Get(fields, "m_payment_id")
	paymentID := gateway.Get(fields, "pf_payment_id")
	paymentStatus := gateway.Get(fields, "payment_status")

	notification := orders.GatewayNotification{
		OrderNumber:      orderNumber,
		GatewayPaymentID: paymentID,
		PaymentStatus:    paymentStatus,
		AmountGross:      gateway.Get(fields, "amount_gross"),
	}

	target, known := gateway.MapPaymentStatus(paymentStatus)
	if !known {
		notification.Detail = "unknown payment state"
		h.ledger.RecordNotification(&notification)
		h.log.Warn("notify with unknown payment state",
			zap.String("order_number", orderNumber),
			zap.String("payment_status", paymentStatus))
		c.String(http.StatusBadRequest, "unknown state")
		return
	}

	if _, err := h.ledger.Transition(orderNumber, target, "gateway:"+paymentID); err != nil {
		notification.Detail = err.Error()
		h.ledger.RecordNotification(&notification)
		h.log.Error("notify transition failed",
			zap.String("order_number", orderNumber),
			zap.String("target", target),
			zap.Error(err))
		if errors.Is(err, orders.ErrOrderNotFound) {
			c.String(http.StatusBadRequest, "unknown order")
			return
		}
		c.String(http.StatusInternalServerError, "retry")
		return
	}

	notification.Accepted = true
	h.ledger.RecordNotification(&notification)
	c.String(http.StatusOK, "ok")
}

func fieldsOrEmpty(body string) []gateway.Field {
	fields, err := gateway.ParseBody(body)
	if err != nil {
		return nil
	}
	return fields
}
