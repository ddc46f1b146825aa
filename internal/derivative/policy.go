package derivative

import (
	"fulfillment-app/internal/domain/assets"
	"fulfillment-app/internal/domain/catalog"
)

// Cache variants. Each generated variant gets its own directory under the
// cache root: <variant>/<object_id>_<variant>.<ext>.
const (
	VariantLowRes      = "lowres"
	VariantWatermarked = "watermarked"
)

type stepKind int

const (
	// serve a registered derivative with the given usage role
	stepDerivative stepKind = iota
	// generate (or reuse) a cached variant from the master
	stepGenerate
	// serve the original only if it is a TIFF
	stepOriginalIfTIFF
	// probe the master's directory for a .tif/.tiff sibling
	stepSiblingTIFF
	// serve a registered derivative only if it is a TIFF
	stepDerivativeIfTIFF
	// serve the untouched original
	stepOriginal
)

// GenerationParams fully determine a generated artifact from its source
// bytes, so repeated generations are interchangeable and cacheable.
type GenerationParams struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
	Watermark bool
}

type step struct {
	kind    stepKind
	usage   string
	variant string
	params  GenerationParams
}

// policyFor returns the ordered fallback chain for a product type. Chains
// are data, not branching logic: new product types only add table entries.
func policyFor(productTypeID uint) []step {
	switch productTypeID {
	case catalog.ProductLowRes:
		return []step{
			{kind: stepDerivative, usage: assets.UsageReference},
			{kind: stepGenerate, variant: VariantLowRes, params: GenerationParams{
				MaxWidth: 1200, MaxHeight: 1200, Quality: 85,
			}},
			{kind: stepOriginal},
		}
	case catalog.ProductHighRes:
		return []step{
			{kind: stepDerivative, usage: assets.UsageMaster},
			{kind: stepOriginal},
		}
	case catalog.ProductTIFFMaster:
		return []step{
			{kind: stepOriginalIfTIFF},
			{kind: stepSiblingTIFF},
			{kind: stepDerivativeIfTIFF, usage: assets.UsageMaster},
			{kind: stepOriginal},
		}
	case catalog.ProductWatermarked:
		return []step{
			{kind: stepGenerate, variant: VariantWatermarked, params: GenerationParams{
				MaxWidth: 1500, MaxHeight: 1500, Quality: 85, Watermark: true,
			}},
			{kind: stepOriginal},
		}
	default:
		return []step{
			{kind: stepDerivative, usage: assets.UsageReference},
			{kind: stepOriginal},
		}
	}
}
