package derivative

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"
	"path/filepath"
	"strings"

	"fulfillment-app/internal/domain/assets"
	"fulfillment-app/internal/infra/imaging"
	"fulfillment-app/internal/infra/storage"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var ErrUnavailable = errors.New("no resolvable file for object")

const watermarkTileSpacing = 250

// Artifact is a servable file resolved for one (object, product type) pair.
type Artifact struct {
	AbsPath string
	// where the chain landed: "derivative", "generated", "original", "sibling"
	Source string
}

// Resolver maps (source asset, product type) to a concrete artifact,
// generating and caching derived variants on demand.
type Resolver struct {
	db            *gorm.DB
	assetStore    *storage.Store
	cacheStore    *storage.Store
	proc          imaging.Processor
	watermarkText string
	log           *zap.Logger
	group         singleflight.Group
}

func NewResolver(db *gorm.DB, assetStore, cacheStore *storage.Store, proc imaging.Processor, watermarkText string, log *zap.Logger) *Resolver {
	return &Resolver{
		db:            db,
		assetStore:    assetStore,
		cacheStore:    cacheStore,
		proc:          proc,
		watermarkText: watermarkText,
		log:           log,
	}
}

// ResolveForDescription resolves via the archival description the buyer
// purchased, which owns at most one master object.
func (r *Resolver) ResolveForDescription(descriptionID, productTypeID uint) (*Artifact, error) {
	master, err := assets.MasterForDescription(r.db, descriptionID)
	if err != nil {
		return nil, ErrUnavailable
	}
	return r.resolve(master, productTypeID)
}

// Resolve maps a master object id and product type to a servable file.
func (r *Resolver) Resolve(objectID, productTypeID uint) (*Artifact, error) {
	master, err := assets.MasterByID(r.db, objectID)
	if err != nil {
		return nil, ErrUnavailable
	}
	return r.resolve(master, productTypeID)
}

// resolve walks the product type's fallback chain. A failing step is
// logged and the chain continues; only a missing original is fatal.
func (r *Resolver) resolve(master *assets.DigitalObjectAsset, productTypeID uint) (*Artifact, error) {
	for _, s := range policyFor(productTypeID) {
		artifact, err := r.tryStep(master, s)
		if err != nil {
			r.log.Warn("derivative step failed, falling back",
				zap.Uint("object_id", master.ID),
				zap.Uint("product_type_id", productTypeID),
				zap.Error(err))
			continue
		}
		if artifact != nil {
			return artifact, nil
		}
	}
	return nil, ErrUnavailable
}

// tryStep returns (nil, nil) when the step simply does not apply, an error
// when it was attempted and failed.
func (r *Resolver) tryStep(master *assets.DigitalObjectAsset, s step) (*Artifact, error) {
	switch s.kind {
	case stepDerivative:
		return r.registeredDerivative(master, s.usage, false)

	case stepDerivativeIfTIFF:
		return r.registeredDerivative(master, s.usage, true)

	case stepGenerate:
		abs, err := r.generate(master, s.variant, s.params)
		if err != nil {
			return nil, err
		}
		return &Artifact{AbsPath: abs, Source: "generated"}, nil

	case stepOriginalIfTIFF:
		if !isTIFF(master.Path, master.MimeType) {
			return nil, nil
		}
		return r.original(master)

	case stepSiblingTIFF:
		return r.siblingTIFF(master)

	case stepOriginal:
		return r.original(master)
	}
	return nil, nil
}

func (r *Resolver) original(master *assets.DigitalObjectAsset) (*Artifact, error) {
	if !r.assetStore.Exists(master.Path) {
		return nil, nil
	}
	abs, err := r.assetStore.Abs(master.Path)
	if err != nil {
		return nil, err
	}
	return &Artifact{AbsPath: abs, Source: "original"}, nil
}

func (r *Resolver) registeredDerivative(master *assets.DigitalObjectAsset, usage string, requireTIFF bool) (*Artifact, error) {
	deriv, ok := assets.DerivativeByUsage(r.db, master.ID, usage)
	if !ok {
		return nil, nil
	}
	if requireTIFF && !isTIFF(deriv.Path, deriv.MimeType) {
		return nil, nil
	}
	if !r.assetStore.Exists(deriv.Path) {
		return nil, nil
	}
	abs, err := r.assetStore.Abs(deriv.Path)
	if err != nil {
		return nil, err
	}
	return &Artifact{AbsPath: abs, Source: "derivative"}, nil
}

func (r *Resolver) siblingTIFF(master *assets.DigitalObjectAsset) (*Artifact, error) {
	siblings, err := r.assetStore.Siblings(master.Path)
	if err != nil {
		return nil, nil
	}
	base := strings.TrimSuffix(filepath.Base(master.Path), filepath.Ext(master.Path))
	for _, rel := range siblings {
		name := filepath.Base(rel)
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".tif" && ext != ".tiff" {
			continue
		}
		if !strings.EqualFold(strings.TrimSuffix(name, filepath.Ext(name)), base) {
			continue
		}
		abs, err := r.assetStore.Abs(rel)
		if err != nil {
			continue
		}
		return &Artifact{AbsPath: abs, Source: "sibling"}, nil
	}
	return nil, nil
}

// generate returns the cached artifact for (object, variant), running the
// image pipeline at most once per key across concurrent requests.
func (r *Resolver) generate(master *assets.DigitalObjectAsset, variant string, p GenerationParams) (string, error) {
	if abs, ok := r.cachedPath(master.ID, variant); ok {
		return abs, nil
	}

	key := fmt.Sprintf("%d:%s", master.ID, variant)
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		// double-checked: another request may have published while this
		// one waited on the flight
		if abs, ok := r.cachedPath(master.ID, variant); ok {
			return abs, nil
		}

		data, err := r.assetStore.ReadFile(master.Path)
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		img, _, err := r.proc.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode source: %w", err)
		}

		img = r.proc.Resize(img, p.MaxWidth, p.MaxHeight)
		if p.Watermark {
			img = r.applyWatermark(img)
		}

		var buf bytes.Buffer
		if err := r.proc.Encode(&buf, img, "jpeg", p.Quality); err != nil {
			return nil, fmt.Errorf("encode %s: %w", variant, err)
		}

		rel := filepath.Join(variant, fmt.Sprintf("%d_%s.jpg", master.ID, variant))
		abs, err := r.cacheStore.WriteFile(rel, buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("publish %s: %w", variant, err)
		}

		entry := assets.DerivativeCacheEntry{
			SourceObjectID: master.ID,
			Variant:        variant,
			Path:           rel,
		}
		if err := r.db.Where("source_object_id = ? AND variant = ?", master.ID, variant).
			FirstOrCreate(&entry).Error; err != nil {
			return nil, fmt.Errorf("record cache entry: %w", err)
		}

		r.log.Info("derivative generated",
			zap.Uint("object_id", master.ID),
			zap.String("variant", variant),
			zap.String("path", rel))
		return abs, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// cachedPath trusts a cache entry whose file still exists; entries are
// never invalidated otherwise.
func (r *Resolver) cachedPath(objectID uint, variant string) (string, bool) {
	var entry assets.DerivativeCacheEntry
	err := r.db.Where("source_object_id = ? AND variant = ?", objectID, variant).
		First(&entry).Error
	if err != nil {
		return "", false
	}
	if !r.cacheStore.Exists(entry.Path) {
		return "", false
	}
	abs, err := r.cacheStore.Abs(entry.Path)
	if err != nil {
		return "", false
	}
	return abs, true
}

// applyWatermark burns one large diagonal centered string plus a regular
// grid of smaller repeats.
func (r *Resolver) applyWatermark(img image.Image) image.Image {
	b := img.Bounds()
	img = r.proc.DrawText(img, r.watermarkText, imaging.TextOptions{
		Scale: 4,
		Angle: -math.Pi / 4,
		X:     b.Dx() / 2,
		Y:     b.Dy() / 2,
		Alpha: 110,
	})
	for y := watermarkTileSpacing / 2; y < b.Dy(); y += watermarkTileSpacing {
		for x := watermarkTileSpacing / 2; x < b.Dx(); x += watermarkTileSpacing {
			img = r.proc.DrawText(img, r.watermarkText, imaging.TextOptions{
				Scale: 1,
				X:     x,
				Y:     y,
				Alpha: 70,
			})
		}
	}
	return img
}

func isTIFF(path, mimeType string) bool {
	if mimeType == "image/tiff" {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".tif" || ext == ".tiff"
}
