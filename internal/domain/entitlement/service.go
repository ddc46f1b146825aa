package entitlement

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"fulfillment-app/internal/domain/orders"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrTokenNotFound  = errors.New("download token not found")
	ErrTokenExpired   = errors.New("download token expired")
	ErrTokenExhausted = errors.New("download token exhausted")
	ErrOrderNotPaid   = errors.New("order not paid")
)

// Service issues, validates and consumes download tokens.
type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

func generateToken() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// Issue creates the token for a purchased item once its order is paid.
// Issuance is idempotent per item: a second call returns the existing
// token lineage instead of minting a new one.
func (s *Service) Issue(item *orders.OrderItem, orderStatus string, ttl time.Duration, maxDownloads int) (*DownloadToken, error) {
	if !orders.Paid(orderStatus) {
		return nil, ErrOrderNotPaid
	}

	var existing DownloadToken
	err := s.db.Where("order_item_id = ?", item.ID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	token := DownloadToken{
		OrderItemID:  item.ID,
		Token:        generateToken(),
		ExpiresAt:    time.Now().Add(ttl),
		MaxDownloads: maxDownloads,
	}
	if err := s.db.Create(&token).Error; err != nil {
		// Concurrent issuance for the same item: the uniqueIndex wins,
		// reload whoever got there first.
		var again DownloadToken
		if lookupErr := s.db.Where("order_item_id = ?", item.ID).First(&again).Error; lookupErr == nil {
			return &again, nil
		}
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.log.Info("download token issued",
		zap.Uint("order_item_id", item.ID),
		zap.Int("max_downloads", maxDownloads),
		zap.Time("expires_at", token.ExpiresAt))
	return &token, nil
}

// Validate checks the token itself and re-checks the owning order's status,
// since cancellation or chargeback can occur after issuance. Returns the
// token with its item and order preloaded.
func (s *Service) Validate(tokenString string) (*DownloadToken, error) {
	var token DownloadToken
	err := s.db.Preload("OrderItem").Preload("OrderItem.Order").
		Where("token = ?", tokenString).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}

	if time.Now().After(token.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	if token.DownloadCount >= token.MaxDownloads {
		return nil, ErrTokenExhausted
	}
	if token.OrderItem.Order == nil || !orders.Paid(token.OrderItem.Order.Status) {
		return nil, ErrOrderNotPaid
	}
	return &token, nil
}

// Consume spends one download. The guard lives in the UPDATE itself so two
// concurrent redemptions cannot both pass a count check and overrun the
// budget.
func (s *Service) Consume(tokenString, clientIP string) error {
	res := s.db.Model(&DownloadToken{}).
		Where("token = ? AND download_count < max_downloads", tokenString).
		Updates(map[string]interface{}{
			"download_count": gorm.Expr("download_count + 1"),
			"last_ip":        clientIP,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var token DownloadToken
		if err := s.db.Where("token = ?", tokenString).First(&token).Error; err != nil {
			return ErrTokenNotFound
		}
		return ErrTokenExhausted
	}

	s.log.Info("download consumed", zap.String("client_ip", clientIP))
	return nil
}
