package delivery

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"fulfillment-app/internal/derivative"
	"fulfillment-app/internal/domain/catalog"
	"fulfillment-app/internal/domain/entitlement"
	"fulfillment-app/internal/domain/orders"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxFilenameLength = 100

// ErrArtifactUnreadable means the resolved file could not be opened before
// any response bytes were written, so the caller can still answer 404.
var ErrArtifactUnreadable = errors.New("artifact unreadable")

// extension table consulted before content sniffing
var mimeByExtension = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".pdf":  "application/pdf",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".wav":  "audio/wav",
	".txt":  "text/plain",
}

// Streamer turns a resolved artifact into an HTTP download and reports
// consumption back to the token service once the stream completes.
type Streamer struct {
	tokens *entitlement.Service
	log    *zap.Logger
}

func NewStreamer(tokens *entitlement.Service, log *zap.Logger) *Streamer {
	return &Streamer{tokens: tokens, log: log}
}

// Serve streams the artifact with attachment and cache-prevention headers.
// The token is consumed only after the full body has been written, so a
// transfer that dies mid-stream is not charged against the budget.
func (s *Streamer) Serve(c *gin.Context, tokenString string, artifact *derivative.Artifact, item *orders.OrderItem, productType catalog.ProductType) error {
	f, err := os.Open(artifact.AbsPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactUnreadable, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactUnreadable, err)
	}

	mimeType, err := resolveMIME(f, artifact.AbsPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactUnreadable, err)
	}

	filename := DownloadFilename(item.Title, productType.Name, filepath.Ext(artifact.AbsPath))

	c.Header("Content-Type", mimeType)
	c.Header("Content-Length", strconv.FormatInt(info.Size(), 10))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, f); err != nil {
		s.log.Warn("download stream aborted",
			zap.Uint("order_item_id", item.ID),
			zap.Error(err))
		return err
	}

	if err := s.tokens.Consume(tokenString, c.ClientIP()); err != nil {
		// the bytes are already delivered; log rather than fail the request
		s.log.Error("consume after delivery failed",
			zap.Uint("order_item_id", item.ID),
			zap.Error(err))
	}

	s.log.Info("download delivered",
		zap.Uint("order_item_id", item.ID),
		zap.String("filename", filename),
		zap.Int64("bytes", info.Size()),
		zap.String("client_ip", c.ClientIP()))
	return nil
}

// resolveMIME prefers the extension table and falls back to sniffing the
// first bytes, leaving the reader rewound.
func resolveMIME(f *os.File, path string) (string, error) {
	if m, ok := mimeByExtension[strings.ToLower(filepath.Ext(path))]; ok {
		return m, nil
	}
	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}

// DownloadFilename builds a safe descriptive name: sanitized archival
// title plus product type name plus the artifact's extension, bounded in
// length.
func DownloadFilename(title, productTypeName, ext string) string {
	name := sanitize(title)
	if name == "" {
		name = "download"
	}
	suffix := sanitize(productTypeName)
	if suffix != "" {
		name = name + "_" + suffix
	}
	if len(name) > maxFilenameLength {
		name = name[:maxFilenameLength]
		name = strings.TrimRight(name, "_")
	}
	return name + strings.ToLower(ext)
}

// sanitize restricts a string to [a-z0-9_] lowercase, collapsing runs.
func sanitize(s string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}
