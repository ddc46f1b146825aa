package download

import (
	"errors"
	"net/http"

	"fulfillment-app/internal/delivery"
	"fulfillment-app/internal/derivative"
	"fulfillment-app/internal/domain/catalog"
	"fulfillment-app/internal/domain/entitlement"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	tokens   *entitlement.Service
	resolver *derivative.Resolver
	streamer *delivery.Streamer
	catalog  catalog.Catalog
	log      *zap.Logger
}

func NewHandler(tokens *entitlement.Service, resolver *derivative.Resolver, streamer *delivery.Streamer, cat catalog.Catalog, log *zap.Logger) *Handler {
	return &Handler{tokens: tokens, resolver: resolver, streamer: streamer, catalog: cat, log: log}
}

// GET /download?token=<opaque>
//
// Every internal failure except a missing file collapses to a generic 403
// so the response never reveals whether a token exists, is expired, or
// belongs to someone else.
func (h *Handler) Download(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Download not available"})
		return
	}

	token, err := h.tokens.Validate(tokenString)
	if err != nil {
		h.log.Info("download rejected",
			zap.String("client_ip", c.ClientIP()),
			zap.Error(err))
		c.JSON(http.StatusForbidden, gin.H{"error": "Download not available"})
		return
	}
	item := token.OrderItem

	productType, ok := h.catalog.Lookup(item.ProductTypeID)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "Download not available"})
		return
	}

	artifact, err := h.resolver.ResolveForDescription(item.ArchivalDescriptionID, productType.ID)
	if err != nil {
		if errors.Is(err, derivative.ErrUnavailable) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "Download not available"})
		return
	}

	if err := h.streamer.Serve(c, tokenString, artifact, &item, productType); err != nil {
		h.log.Error("download serve failed",
			zap.Uint("order_item_id", item.ID),
			zap.Error(err))
		if errors.Is(err, delivery.ErrArtifactUnreadable) && !c.Writer.Written() {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		}
		// otherwise headers are already out; nothing more can be sent
	}
}
