package orders

import (
	"net/http"
	"time"

	"fulfillment-app/config"
	"fulfillment-app/internal/domain/catalog"
	"fulfillment-app/internal/domain/entitlement"
	"fulfillment-app/internal/domain/orders"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	ledger  *orders.Ledger
	catalog catalog.Catalog
	tokens  *entitlement.Service
	log     *zap.Logger
}

func NewHandler(ledger *orders.Ledger, cat catalog.Catalog, tokens *entitlement.Service, log *zap.Logger) *Handler {
	return &Handler{ledger: ledger, catalog: cat, tokens: tokens, log: log}
}

// RequesterOwner extracts the order owner for this request: the JWT user
// when authenticated, the opaque session cookie otherwise.
func RequesterOwner(c *gin.Context) orders.Owner {
	if userID := c.GetUint("user_id"); userID != 0 {
		return orders.Owner{UserID: &userID}
	}
	sid := c.GetString("session_id")
	if sid == "" {
		return orders.Owner{}
	}
	return orders.Owner{SessionID: &sid}
}

// POST /orders
func (h *Handler) CreateOrder(c *gin.Context) {
	var input struct {
		Items []struct {
			ProductTypeID         uint   `json:"product_type_id"`
			ArchivalDescriptionID uint   `json:"archival_description_id"`
			Title                 string `json:"title"`
			Quantity              uint   `json:"quantity"`
		} `json:"items" binding:"required"`
		RepositoryID *uint `json:"repository_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(input.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order needs at least one item"})
		return
	}

	// allow-list product types and snapshot catalog prices
	var items []orders.NewItem
	for _, it := range input.Items {
		pt, ok := h.catalog.Lookup(it.ProductTypeID)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown product type"})
			return
		}
		items = append(items, orders.NewItem{
			ProductTypeID:         pt.ID,
			ArchivalDescriptionID: it.ArchivalDescriptionID,
			Title:                 it.Title,
			UnitPrice:             pt.UnitPrice,
			Quantity:              it.Quantity,
		})
	}

	owner := RequesterOwner(c)
	order, err := h.ledger.Create(owner, items, input.RepositoryID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not create order"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order_number": order.OrderNumber,
		"status":       order.Status,
		"total":        order.Total(),
	})
}

// GET /orders/:number
func (h *Handler) GetOrder(c *gin.Context) {
	order, ok := h.ownedOrder(c)
	if !ok {
		return
	}

	items := make([]gin.H, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, gin.H{
			"id":              it.ID,
			"product_type_id": it.ProductTypeID,
			"title":           it.Title,
			"unit_price":      it.UnitPrice,
			"quantity":        it.Quantity,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"order_number": order.OrderNumber,
		"status":       order.Status,
		"total":        order.Total(),
		"items":        items,
	})
}

// GET /orders/:number/downloads
//
// Lists the order's digital items with their download tokens. Tokens are
// issued lazily here, idempotently per item, so webhook redelivery can
// never double-issue them.
func (h *Handler) ListDownloads(c *gin.Context) {
	order, ok := h.ownedOrder(c)
	if !ok {
		return
	}
	if !orders.Paid(order.Status) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Order is not paid"})
		return
	}

	ttl := time.Duration(config.DOWNLOAD_TTL_DAYS) * 24 * time.Hour
	downloads := make([]gin.H, 0, len(order.Items))
	for i := range order.Items {
		item := &order.Items[i]
		pt, found := h.catalog.Lookup(item.ProductTypeID)
		if !found || !pt.IsDigital {
			continue
		}

		token, err := h.tokens.Issue(item, order.Status, ttl, config.DOWNLOAD_MAX_DEFAULT)
		if err != nil {
			h.log.Error("token issuance failed",
				zap.Uint("order_item_id", item.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not issue download token"})
			return
		}

		downloads = append(downloads, gin.H{
			"order_item_id": item.ID,
			"title":         item.Title,
			"product_type":  pt.Name,
			"token":         token.Token,
			"expires_at":    token.ExpiresAt,
			"remaining":     token.Remaining(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"order_number": order.OrderNumber,
		"downloads":    downloads,
	})
}

// ownedOrder loads the order from the path and enforces ownership,
// answering with a generic denial on any mismatch.
func (h *Handler) ownedOrder(c *gin.Context) (*orders.Order, bool) {
	order, err := h.ledger.Get(c.Param("number"))
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
