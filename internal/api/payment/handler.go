package payment

import (
	"fmt"
	"net/http"

	"fulfillment-app/config"
	"fulfillment-app/internal/domain/orders"
	"fulfillment-app/internal/infra/gateway"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	ledger  *orders.Ledger
	adapter *gateway.Adapter
	log     *zap.Logger
}

func NewHandler(ledger *orders.Ledger, adapter *gateway.Adapter, log *zap.Logger) *Handler {
	return &Handler{ledger: ledger, adapter: adapter, log: log}
}

// POST /payment/initiate?order=<order_number>
//
// Produces the signed form the buyer's browser POSTs to the gateway. Does
// not change order status; only the notification path does.
func (h *Handler) Initiate(c *gin.Context) {
	order, ok := h.ownedOrder(c)
	if !ok {
		return
	}

	itemName := fmt.Sprintf("Archival reproduction order %s", order.OrderNumber)
	form, err := h.adapter.BuildForm(order, itemName)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Payment cannot be started for this order"})
		return
	}

	c.JSON(http.StatusOK, form)
}

// GET /payment/return?order=<order_number>
//
// Buyer-facing and optimistic only: anyone can hit this URL, so it never
// moves state. The authoritative signal arrives on /payment/notify.
func (h *Handler) Return(c *gin.Context) {
	orderNumber := c.Query("order")
	h.log.Info("buyer returned from gateway", zap.String("order_number", orderNumber))
	c.Redirect(http.StatusFound, config.APP_URL+"/orders/"+orderNumber+"?payment=processing")
}

// GET /payment/cancel?order=<order_number>
//
// The order stays pending; a cancelled checkout never paid, so there is
// nothing to transition.
func (h *Handler) Cancel(c *gin.Context) {
	orderNumber := c.Query("order")
	h.log.Info("buyer cancelled at gateway", zap.String("order_number", orderNumber))
	c.Redirect(http.StatusFound, config.APP_URL+"/orders/"+orderNumber+"?payment=cancelled")
}

func (h *Handler) ownedOrder(c *gin.Context) (*orders.Order, bool) {
	order, err := h.ledger.Get(c.Query("order"))
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return nil, false
	}

	var userID *uint
	if uid := c.GetUint("user_id"); uid != 0 {
		userID = &uid
	}
	if !h.ledger.VerifyOwnership(order, userID, c.GetString("session_id")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return nil, false
	}
	return order, true
}
