package assets

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Usage roles for stored digital objects. The master row has no parent;
// derivative rows link back to it through ParentID.
const (
	UsageMaster    = "master"
	UsageReference = "reference"
	UsageThumbnail = "thumbnail"
)

var ErrAssetNotFound = errors.New("digital object not found")

// DigitalObjectAsset rows are owned by the ingestion subsystem and are
// immutable here; this core only reads them.
type DigitalObjectAsset struct {
	ID       uint `gorm:"primaryKey"`
	ParentID *uint
	Parent   *DigitalObjectAsset

	ArchivalDescriptionID uint   `gorm:"index:idx_digital_objects_description"`
	UsageRole             string `gorm:"type:varchar(20);not null"`

	// Path relative to the asset store root.
	Path     string `gorm:"not null"`
	MimeType string

	CreatedAt time.Time
}

// DerivativeCacheEntry maps (source object, variant) to a generated
// artifact path under the cache root. Write-once per key; entries are
// never invalidated (archival masters are treated as immutable).
type DerivativeCacheEntry struct {
	ID             uint   `gorm:"primaryKey"`
	SourceObjectID uint   `gorm:"uniqueIndex:idx_derivative_cache_key"`
	Variant        string `gorm:"type:varchar(20);uniqueIndex:idx_derivative_cache_key"`
	Path           string `gorm:"not null"`
	CreatedAt      time.Time
}

// MasterByID loads a master object row.
func MasterByID(db *gorm.DB, id uint) (*DigitalObjectAsset, error) {
	var asset DigitalObjectAsset
	err := db.Where("id = ? AND parent_id IS NULL", id).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// MasterForDescription resolves the master object attached to an archival
// description.
func MasterForDescription(db *gorm.DB, descriptionID uint) (*DigitalObjectAsset, error) {
	var asset DigitalObjectAsset
	err := db.Where("archival_description_id = ? AND parent_id IS NULL", descriptionID).
		First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// DerivativeByUsage returns the registered derivative of a master with the
// given usage role, if one exists.
func DerivativeByUsage(db *gorm.DB, masterID uint, usage string) (*DigitalObjectAsset, bool) {
	var asset DigitalObjectAsset
	err := db.Where("parent_id = ? AND usage_role = ?", masterID, usage).First(&asset).Error
	if err != nil {
		return nil, false
	}
	return &asset, true
}
