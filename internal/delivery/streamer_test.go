package delivery

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fulfillment-app/internal/derivative"
	"fulfillment-app/internal/domain/catalog"
	"fulfillment-app/internal/domain/entitlement"
	"fulfillment-app/internal/domain/orders"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&orders.Order{}, &orders.OrderItem{}, &entitlement.DownloadToken{},
	))
	return db
}

func seedPaidItemWithToken(t *testing.T, db *gorm.DB, tokens *entitlement.Service) (*orders.OrderItem, *entitlement.DownloadToken) {
	sess := "sess-1"
	order := orders.Order{
		OrderNumber: "ORD-TEST1",
		SessionID:   &sess,
		Status:      orders.StatusCompleted,
	}
	require.NoError(t, db.Create(&order).Error)
	item := orders.OrderItem{
		OrderID:               order.ID,
		ProductTypeID:         catalog.ProductLowRes,
		ArchivalDescriptionID: 42,
		Title:                 "Harbour at dawn, 1932",
		UnitPrice:             10,
		Quantity:              1,
	}
	require.NoError(t, db.Create(&item).Error)
	token, err := tokens.Issue(&item, order.Status, 24*time.Hour, 3)
	require.NoError(t, err)
	return &item, token
}

func writeArtifact(t *testing.T, name string, data []byte) *derivative.Artifact {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return &derivative.Artifact{AbsPath: path, Source: "generated"}
}

func TestServe_StreamsWithHeadersAndConsumes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	tokens := entitlement.NewService(db, zap.NewNop())
	item, token := seedPaidItemWithToken(t, db, tokens)
	streamer := NewStreamer(tokens, zap.NewNop())

	body := []byte("jpeg payload bytes")
	artifact := writeArtifact(t, "42_lowres.jpg", body)
	productType := catalog.ProductType{ID: catalog.ProductLowRes, Name: "Low resolution"}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/download", nil)

	err := streamer.Serve(c, token.Token, artifact, item, productType)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, fmt.Sprint(len(body)), w.Header().Get("Content-Length"))
	assert.Equal(t, `attachment; filename="harbour_at_dawn_1932_low_resolution.jpg"`,
		w.Header().Get("Content-Disposition"))
	assert.Equal(t, "no-store, no-cache, must-revalidate", w.Header().Get("Cache-Control"))
	assert.Equal(t, body, w.Body.Bytes())

	// the completed stream charged the budget
	var stored entitlement.DownloadToken
	require.NoError(t, db.Where("token = ?", token.Token).First(&stored).Error)
	assert.Equal(t, 1, stored.DownloadCount)
}

func TestServe_MissingFileBeforeHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	tokens := entitlement.NewService(db, zap.NewNop())
	item, token := seedPaidItemWithToken(t, db, tokens)
	streamer := NewStreamer(tokens, zap.NewNop())

	artifact := &derivative.Artifact{AbsPath: filepath.Join(t.TempDir(), "gone.jpg")}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/download", nil)

	err := streamer.Serve(c, token.Token, artifact, item, catalog.ProductType{Name: "Low resolution"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArtifactUnreadable)
	assert.False(t, c.Writer.Written())

	// a failed open never spends the budget
	var stored entitlement.DownloadToken
	require.NoError(t, db.Where("token = ?", token.Token).First(&stored).Error)
	assert.Equal(t, 0, stored.DownloadCount)
}

func TestServe_SniffsUnknownExtension(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	tokens := entitlement.NewService(db, zap.NewNop())
	item, token := seedPaidItemWithToken(t, db, tokens)
	streamer := NewStreamer(tokens, zap.NewNop())

	// PNG magic bytes under an extension the table does not know
	payload := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	artifact := writeArtifact(t, "42_master.bin", payload)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/download", nil)

	err := streamer.Serve(c, token.Token, artifact, item, catalog.ProductType{Name: "Master"})
	require.NoError(t, err)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, payload, w.Body.Bytes())
}

func TestDownloadFilename(t *testing.T) {
	cases := []struct {
		name     string
		title    string
		typeName string
		ext      string
		want     string
	}{
		{
			name:     "title and type",
			title:    "Harbour at dawn, 1932",
			typeName: "Low resolution",
			ext:      ".jpg",
			want:     "harbour_at_dawn_1932_low_resolution.jpg",
		},
		{
			name:     "uppercase extension lowered",
			title:    "Scan 003",
			typeName: "TIFF",
			ext:      ".TIF",
			want:     "scan_003_tiff.tif",
		},
		{
			name:     "empty title falls back",
			title:    "///",
			typeName: "Watermarked",
			ext:      ".jpg",
			want:     "download_watermarked.jpg",
		},
		{
			name:     "punctuation collapsed",
			title:    "a -- b!! c",
			typeName: "",
			ext:      ".png",
			want:     "a_b_c.png",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DownloadFilename(tc.title, tc.typeName, tc.ext))
		})
	}
}

func TestDownloadFilename_Bounded(t *testing.T) {
	long := strings.Repeat("very long archival description title ", 10)
	got := DownloadFilename(long, "high resolution", ".jpg")
	assert.LessOrEqual(t, len(got), maxFilenameLength+len(".jpg"))
	assert.True(t, strings.HasSuffix(got, ".jpg"))
	assert.False(t, strings.Contains(strings.TrimSuffix(got, ".jpg"), "."))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "harbour_at_dawn", sanitize("Harbour at Dawn"))
	assert.Equal(t, "photo001", sanitize("photo001"))
	assert.Equal(t, "", sanitize("!!!"))
	assert.Equal(t, "a_b", sanitize("__a___b__"))
}
