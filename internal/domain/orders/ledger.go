package orders

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidTransition = errors.New("invalid order transition")
	ErrEmptyOrder        = errors.New("order has no items")
	ErrInvalidOwner      = errors.New("order owner must be a user or a session, not both")
	ErrOrderNotFound     = errors.New("order not found")
)

// allowedTransitions maps a current status to the statuses it may move to.
// Re-applying the current status is always a no-op success (the webhook may
// be redelivered), handled before this table is consulted.
var allowedTransitions = map[string][]string{
	StatusPending: {StatusPaid, StatusCompleted, StatusCancelled},
	StatusPaid:    {StatusCompleted},
}

// Owner identifies who a new order belongs to. Exactly one field is set.
type Owner struct {
	UserID    *uint
	SessionID *string
}

// NewItem is a priced line item handed to Create. Price snapshotting from
// the catalog happens in the checkout handler before the ledger sees it.
type NewItem struct {
	ProductTypeID         uint
	ArchivalDescriptionID uint
	Title                 string
	UnitPrice             float64
	Quantity              uint
}

// Ledger owns order records and their status transitions. Nothing else in
// the application writes order status.
type Ledger struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewLedger(db *gorm.DB, log *zap.Logger) *Ledger {
	return &Ledger{db: db, log: log}
}

func newOrderNumber() string {
	return "ORD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func (l *Ledger) Create(owner Owner, items []NewItem, repositoryID *uint) (*Order, error) {
	if (owner.UserID == nil) == (owner.SessionID == nil) {
		return nil, ErrInvalidOwner
	}
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	order := Order{
		OrderNumber:  newOrderNumber(),
		UserID:       owner.UserID,
		SessionID:    owner.SessionID,
		Status:       StatusPending,
		RepositoryID: repositoryID,
	}
	for _, it := range items {
		qty := it.Quantity
		if qty == 0 {
			qty = 1
		}
		order.Items = append(order.Items, OrderItem{
			ProductTypeID:         it.ProductTypeID,
			ArchivalDescriptionID: it.ArchivalDescriptionID,
			Title:                 it.Title,
			UnitPrice:             it.UnitPrice,
			Quantity:              qty,
		})
	}

	if err := l.db.Create(&order).Error; err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	l.log.Info("order created",
		zap.String("order_number", order.OrderNumber),
		zap.Int("items", len(order.Items)))
	return &order, nil
}

func (l *Ledger) Get(orderNumber string) (*Order, error) {
	var order Order
	err := l.db.Preload("Items").Where("order_number = ?", orderNumber).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Transition moves an order to newStatus if the transition is allowed.
// Re-applying the order's current status is an idempotent no-op. The status
// update is a guarded single statement so two concurrent webhook deliveries
// cannot both apply it.
func (l *Ledger) Transition(orderNumber, newStatus, evidence string) (*Order, error) {
	order, err := l.Get(orderNumber)
	if err != nil {
		return nil, err
	}

	if order.Status == newStatus {
		l.log.Info("order transition no-op",
			zap.String("order_number", orderNumber),
			zap.String("status", newStatus))
		return order, nil
	}

	if !transitionAllowed(order.Status, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, newStatus)
	}

	res := l.db.Model(&Order{}).
		Where("order_number = ? AND status = ?", orderNumber, order.Status).
		Updates(map[string]interface{}{
			"status":   newStatus,
			"revision": gorm.Expr("revision + 1"),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the race with a concurrent transition. Re-read: if the
		// winner applied the same target this is still a no-op success.
		current, err := l.Get(orderNumber)
		if err != nil {
			return nil, err
		}
		if current.Status == newStatus {
			return current, nil
		}
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, newStatus)
	}

	updated, err := l.Get(orderNumber)
	if err != nil {
		return nil, err
	}

	audit := OrderTransition{
		OrderID:    updated.ID,
		Revision:   updated.Revision,
		FromStatus: order.Status,
		ToStatus:   newStatus,
		Evidence:   evidence,
	}
	if err := l.db.Create(&audit).Error; err != nil {
		return nil, fmt.Errorf("record transition: %w", err)
	}

	l.log.Info("order transitioned",
		zap.String("order_number", orderNumber),
		zap.String("from", order.Status),
		zap.String("to", newStatus),
		zap.Uint("revision", updated.Revision))
	return updated, nil
}

func transitionAllowed(from, to string) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// VerifyOwnership reports whether the requester may access the order. An
// order with neither owner field set is inaccessible to anyone.
func (l *Ledger) VerifyOwnership(order *Order, userID *uint, sessionID string) bool {
	if order.UserID != nil {
		return userID != nil && *userID == *order.UserID
	}
	if order.SessionID != nil {
		return sessionID != "" && sessionID == *order.SessionID
	}
	return false
}

// RecordNotification appends an ITN delivery to the audit log.
func (l *Ledger) RecordNotification(n *GatewayNotification) {
	if err := l.db.Create(n).Error; err != nil {
		l.log.Error("record gateway notification", zap.Error(err))
	}
}

// Paid reports whether downloads may be served against the order.
func Paid(status string) bool {
	return status == StatusPaid || status == StatusCompleted
}

// Total is the order amount the gateway is asked to collect.
func (o *Order) Total() float64 {
	var sum float64
	for _, it := range o.Items {
		sum += it.UnitPrice * float64(it.Quantity)
	}
	return sum
}
