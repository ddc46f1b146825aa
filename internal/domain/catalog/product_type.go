package catalog

import (
	"time"

	"gorm.io/gorm"
)

// Well-known product type ids. Anything else resolves as a plain
// reference/original copy.
const (
	ProductLowRes      uint = 1
	ProductHighRes     uint = 2
	ProductTIFFMaster  uint = 3
	ProductWatermarked uint = 9
)

type ProductType struct {
	ID        uint `gorm:"primaryKey"`
	Name      string
	IsDigital bool
	UnitPrice float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Catalog is the read-only product-type lookup handed to handlers and
// services. Injected rather than global so tests can substitute fixtures.
type Catalog interface {
	Lookup(id uint) (ProductType, bool)
}

type staticCatalog struct {
	types map[uint]ProductType
}

func (c *staticCatalog) Lookup(id uint) (ProductType, bool) {
	pt, ok := c.types[id]
	return pt, ok
}

// NewStaticCatalog builds a catalog from a fixed set of product types.
func NewStaticCatalog(types []ProductType) Catalog {
	m := make(map[uint]ProductType, len(types))
	for _, pt := range types {
		m[pt.ID] = pt
	}
	return &staticCatalog{types: m}
}

// LoadCatalog snapshots the product_types table into an in-memory catalog.
// Product types are external reference data and do not change at runtime.
func LoadCatalog(db *gorm.DB) (Catalog, error) {
	var types []ProductType
	if err := db.Find(&types).Error; err != nil {
		return nil, err
	}
	return NewStaticCatalog(types), nil
}

// DefaultProductTypes is the seed set used on first boot and in tests.
func DefaultProductTypes() []ProductType {
	return []ProductType{
		{ID: ProductLowRes, Name: "Low-resolution copy", IsDigital: true, UnitPrice: 5.00},
		{ID: ProductHighRes, Name: "High-resolution copy", IsDigital: true, UnitPrice: 25.00},
		{ID: ProductTIFFMaster, Name: "TIFF master", IsDigital: true, UnitPrice: 60.00},
		{ID: ProductWatermarked, Name: "Watermarked research copy", IsDigital: true, UnitPrice: 2.50},
	}
}

// Seed inserts the default product types if they are not present yet.
func Seed(db *gorm.DB) error {
	for _, pt := range DefaultProductTypes() {
		if err := db.Where("id = ?", pt.ID).FirstOrCreate(&pt).Error; err != nil {
			return err
		}
	}
	return nil
}
