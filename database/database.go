package database

import (
	"log"
	"os"

	"fulfillment-app/internal/domain/assets"
	"fulfillment-app/internal/domain/catalog"
	"fulfillment-app/internal/domain/entitlement"
	"fulfillment-app/internal/domain/orders"
	"fulfillment-app/internal/domain/users"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB() {
	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		log.Fatal("DB_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	DB = db

	if err := Migrate(DB); err != nil {
		log.Fatal("AutoMigrate error:", err)
	}

	if err := catalog.Seed(DB); err != nil {
		log.Fatal("Product type seed error:", err)
	}
}

// Migrate applies the schema for every domain model. Shared with tests,
// which run it against an in-memory database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// buyers
		&users.User{},

		// catalog reference data
		&catalog.ProductType{},

		// orders
		&orders.Order{},
		&orders.OrderItem{},
		&orders.OrderTransition{},
		&orders.GatewayNotification{},

		// entitlements
		&entitlement.DownloadToken{},

		// digital objects
		&assets.DigitalObjectAsset{},
		&assets.DerivativeCacheEntry{},
	)
}
