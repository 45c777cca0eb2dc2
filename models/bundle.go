package models

import (
	"time"

	"github.com/google/uuid"

	"car-price-predictor/regressor"
)

// FeatureSet selects which numeric features a model consumes.
type FeatureSet string

const (
	// FeatureSetRaw passes year and odometer through unchanged.
	FeatureSetRaw FeatureSet = "raw"
	// FeatureSetDerived replaces year/odometer with car_age and odo_per_year.
	FeatureSetDerived FeatureSet = "derived"
)

// Encoding selects how categorical columns become numeric features.
type Encoding string

const (
	// EncodingLabel maps each category to one integer code.
	EncodingLabel Encoding = "label"
	// EncodingOneHot expands each category into an indicator block.
	EncodingOneHot Encoding = "onehot"
)

// TargetTransform is applied to the (capped) price before fitting.
type TargetTransform string

const (
	TransformNone  TargetTransform = "none"
	TransformLog1p TargetTransform = "log1p"
)

// FallbackPolicy decides which known category replaces an unseen one.
type FallbackPolicy string

const (
	// FallbackFirstKnown substitutes the category with code 0.
	FallbackFirstKnown FallbackPolicy = "first_known"
	// FallbackMissing substitutes the "missing" sentinel when it was seen during
	// fitting, and the first known category otherwise.
	FallbackMissing FallbackPolicy = "missing"
)

// Schema describes exactly how a bundle's model expects its input to be built.
type Schema struct {
	Variant         string          `json:"variant"`
	FeatureSet      FeatureSet      `json:"feature_set"`
	Encoding        Encoding        `json:"encoding"`
	TargetTransform TargetTransform `json:"target_transform"`
	PriceCap        float64         `json:"price_cap"`
	ReferenceYear   int             `json:"reference_year"`
	Fallback        FallbackPolicy  `json:"fallback"`
	Features        []string        `json:"features"`
	Medians         Medians         `json:"medians"`
}

// Bundle is the unit of persistence: model, encoder table and schema are
// trained, saved and loaded together and never modified after training.
type Bundle struct {
	ID        uuid.UUID
	Version   int
	CreatedAt time.Time
	Schema    Schema
	Encoder   *EncoderTable
	Model     regressor.Model
	Eval      Evaluation
}

// Name is the registry/file name stem for the bundle, e.g. "finetuned_v3".
func (b *Bundle) Name() string {
	return BundleName(b.Schema.Variant, b.Version)
}
