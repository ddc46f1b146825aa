package main

import (
	"log"
	"os"
	"time"

	"fulfillment-app/config"
	"fulfillment-app/database"
	downloadapi "fulfillment-app/internal/api/download"
	ordersapi "fulfillment-app/internal/api/orders"
	paymentapi "fulfillment-app/internal/api/payment"
	routes "fulfillment-app/internal/app/http"
	"fulfillment-app/internal/delivery"
	"fulfillment-app/internal/derivative"
	"fulfillment-app/internal/domain/catalog"
	"fulfillment-app/internal/domain/entitlement"
	"fulfillment-app/internal/domain/orders"
	"fulfillment-app/internal/infra/gateway"
	"fulfillment-app/internal/infra/imaging"
	"fulfillment-app/internal/infra/storage"
	"fulfillment-app/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	config.LoadEnv()
	database.InitDB()

	zapLogger, err := logger.NewLogger(os.Getenv("APP_ENV"))
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	assetStore, err := storage.NewStore(config.ASSET_ROOT)
	if err != nil {
		zapLogger.Fatal("asset store", zap.Error(err))
	}
	cacheStore, err := storage.NewStore(config.CACHE_ROOT)
	if err != nil {
		zapLogger.Fatal("cache store", zap.Error(err))
	}

	cat, err := catalog.LoadCatalog(database.DB)
	if err != nil {
		zapLogger.Fatal("product catalog", zap.Error(err))
	}

	ledger := orders.NewLedger(database.DB, zapLogger)
	tokens := entitlement.NewService(database.DB, zapLogger)

	adapter := gateway.NewAdapter(gateway.Config{
		MerchantID:  config.MERCHANT_ID,
		MerchantKey: config.MERCHANT_KEY,
		Passphrase:  config.GATEWAY_PASSPHRASE,
		ProcessURL:  config.GATEWAY_PROCESS_URL,
		ReturnURL:   config.APP_URL + "/payment/return",
		CancelURL:   config.APP_URL + "/payment/cancel",
		NotifyURL:   config.APP_URL + "/payment/notify",
	})

	resolver := derivative.NewResolver(database.DB, assetStore, cacheStore,
		imaging.NewStdProcessor(), os.Getenv("WATERMARK_TEXT"), zapLogger)
	streamer := delivery.NewStreamer(tokens, zapLogger)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{os.Getenv("CORS_ORIGIN")},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Handlers{
		Orders:   ordersapi.NewHandler(ledger, cat, tokens, zapLogger),
		Payment:  paymentapi.NewHandler(ledger, adapter, zapLogger),
		Download: downloadapi.NewHandler(tokens, resolver, streamer, cat, zapLogger),
	})

	r.Run(":" + config.PORT)
}
