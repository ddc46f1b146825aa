package orders

import (
	"time"

	"fulfillment-app/internal/domain/users"
)

const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Order owner is user_id XOR session_id: exactly one side is set at
// creation and neither changes afterwards. Orders are never deleted.
type Order struct {
	ID          uint   `gorm:"primaryKey"`
	OrderNumber string `gorm:"not null;uniqueIndex:idx_orders_number"`

	UserID    *uint
	User      *users.User
	SessionID *string `gorm:"index:idx_orders_session"`

	Status       string `gorm:"type:varchar(20);not null;default:'pending'"`
	RepositoryID *uint

	// Bumped on every status transition, for auditing duplicate and
	// late gateway signals.
	Revision uint `gorm:"not null;default:0"`

	Items []OrderItem

	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderItem struct {
	ID      uint `gorm:"primaryKey"`
	OrderID uint `gorm:"index:idx_order_items_order"`
	Order   *Order

	ProductTypeID         uint `gorm:"not null"`
	ArchivalDescriptionID uint `gorm:"not null"`

	// Display title of the archival description, snapshotted for
	// download filenames.
	Title string

	// Snapshot of the catalog price at checkout. Immutable once the
	// order leaves pending.
	UnitPrice float64
	Quantity  uint `gorm:"not null;default:1"`

	CreatedAt time.Time
}

// OrderTransition is the audit row written for every applied transition.
type OrderTransition struct {
	ID         uint `gorm:"primaryKey"`
	OrderID    uint `gorm:"index:idx_order_transitions_order"`
	Revision   uint
	FromStatus string
	ToStatus   string
	Evidence   string
	CreatedAt  time.Time
}

// GatewayNotification records every ITN delivery, including duplicates,
// so late and redelivered signals can be audited afterwards.
type GatewayNotification struct {
	ID               uint `gorm:"primaryKey"`
	OrderNumber      string `gorm:"index:idx_gateway_notifications_order"`
	GatewayPaymentID string
	PaymentStatus    string
	AmountGross      string
	Accepted         bool
	Detail           string
	CreatedAt        time.Time
}
