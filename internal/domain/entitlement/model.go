package entitlement

import (
	"time"

	"fulfillment-app/internal/domain/orders"
)

// DownloadToken is a single-purpose entitlement bound to one purchased
// line item. Invalidity (expired, exhausted) is derived, never stored.
type DownloadToken struct {
	ID          uint             `gorm:"primaryKey"`
	OrderItemID uint             `gorm:"uniqueIndex:idx_download_tokens_item"`
	OrderItem   orders.OrderItem `gorm:"constraint:OnDelete:CASCADE"`

	Token        string `gorm:"not null;uniqueIndex:idx_download_tokens_token"`
	ExpiresAt    time.Time
	MaxDownloads int `gorm:"not null"`
	DownloadCount int `gorm:"not null;default:0"`
	LastIP       *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Remaining is the number of downloads the token can still authorize.
func (t *DownloadToken) Remaining() int {
	if t.DownloadCount >= t.MaxDownloads {
		return 0
	}
	return t.MaxDownloads - t.DownloadCount
}
