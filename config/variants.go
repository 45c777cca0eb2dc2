package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"car-price-predictor/models"
	"car-price-predictor/regressor"
	"car-price-predictor/validation"
)

// Built-in variant names.
const (
	VariantBaseline  = "baseline"
	VariantLightGBM  = "lightgbm"
	VariantFinetuned = "finetuned"
)

// Variant is a named training profile: which features, encoding, target
// transform, split and regressor a training run uses.
type Variant struct {
	Name                 string                 `koanf:"name" validate:"required"`
	FeatureSet           models.FeatureSet      `koanf:"feature_set" validate:"oneof=raw derived"`
	Encoding             models.Encoding        `koanf:"encoding" validate:"oneof=label onehot"`
	TargetTransform      models.TargetTransform `koanf:"target_transform" validate:"oneof=none log1p"`
	PriceCap             float64                `koanf:"price_cap" validate:"gte=0"`
	ReferenceYear        int                    `koanf:"reference_year" validate:"gte=0"`
	Fallback             models.FallbackPolicy  `koanf:"fallback" validate:"oneof=first_known missing"`
	TestFraction         float64                `koanf:"test_fraction" validate:"gt=0,lt=1"`
	MaxOneHot            int                    `koanf:"max_onehot" validate:"gte=0"`
	DropNonPositivePrice bool                   `koanf:"drop_non_positive_price"`
	Regressor            regressor.Params       `koanf:"regressor"`
}

// Schema returns the bundle schema a model trained with this variant carries.
func (v Variant) Schema() models.Schema {
	return models.Schema{
		Variant:         v.Name,
		FeatureSet:      v.FeatureSet,
		Encoding:        v.Encoding,
		TargetTransform: v.TargetTransform,
		PriceCap:        v.PriceCap,
		ReferenceYear:   v.ReferenceYear,
		Fallback:        v.Fallback,
	}
}

type variantFile struct {
	Variants map[string]Variant `koanf:"variants"`
}

// DefaultVariants returns the built-in profiles.
func DefaultVariants() map[string]Variant {
	return map[string]Variant{
		VariantBaseline: {
			Name:                 VariantBaseline,
			FeatureSet:           models.FeatureSetRaw,
			Encoding:             models.EncodingOneHot,
			TargetTransform:      models.TransformNone,
			Fallback:             models.FallbackFirstKnown,
			TestFraction:         0.15,
			MaxOneHot:            32,
			DropNonPositivePrice: true,
			Regressor: regressor.Params{
				Kind:            regressor.KindRandomForest,
				NEstimators:     100,
				MinChildSamples: 1,
				Subsample:       1,
				ColsampleByTree: 1,
				MaxBins:         255,
				Seed:            42,
			},
		},
		VariantLightGBM: {
			Name:            VariantLightGBM,
			FeatureSet:      models.FeatureSetRaw,
			Encoding:        models.EncodingLabel,
			TargetTransform: models.TransformNone,
			PriceCap:        200000,
			Fallback:        models.FallbackFirstKnown,
			TestFraction:    0.2,
			Regressor: regressor.Params{
				Kind:            regressor.KindGBDT,
				NEstimators:     500,
				LearningRate:    0.1,
				NumLeaves:       31,
				MaxDepth:        -1,
				MinChildSamples: 20,
				Subsample:       1,
				ColsampleByTree: 1,
				MaxBins:         255,
				Seed:            42,
			},
		},
		VariantFinetuned: {
			Name:            VariantFinetuned,
			FeatureSet:      models.FeatureSetDerived,
			Encoding:        models.EncodingLabel,
			TargetTransform: models.TransformLog1p,
			PriceCap:        200000,
			ReferenceYear:   2025,
			Fallback:        models.FallbackFirstKnown,
			TestFraction:    0.2,
			Regressor: regressor.Params{
				Kind:            regressor.KindGBDT,
				NEstimators:     1000,
				LearningRate:    0.05,
				NumLeaves:       50,
				MaxDepth:        10,
				MinChildSamples: 20,
				Subsample:       0.8,
				ColsampleByTree: 0.8,
				MaxBins:         255,
				Seed:            42,
			},
		},
	}
}

// LoadVariants layers the built-in profiles with an optional YAML file and
// validates every result. A missing file at path is not an error.
//
// Example file:
//
//	variants:
//	  finetuned:
//	    regressor:
//	      n_estimators: 300
func LoadVariants(path string) (map[string]Variant, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(variantFile{Variants: DefaultVariants()}, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("variants: load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("variants: load %q: %w", path, err)
			}
		}
	}

	var vf variantFile
	if err := k.Unmarshal("", &vf); err != nil {
		return nil, fmt.Errorf("variants: unmarshal: %w", err)
	}

	for name, v := range vf.Variants {
		if v.Name == "" {
			v.Name = name
		}
		if err := validation.ValidateStruct(&v); err != nil {
			return nil, fmt.Errorf("variants: %s: %w", name, err)
		}
		vf.Variants[name] = v
	}
	return vf.Variants, nil
}

// Lookup returns the named variant or an error listing the known names.
func Lookup(variants map[string]Variant, name string) (Variant, error) {
	if v, ok := variants[name]; ok {
		return v, nil
	}
	names := make([]string, 0, len(variants))
	for n := range variants {
		names = append(names, n)
	}
	sort.Strings(names)
	return Variant{}, fmt.Errorf("variants: unknown variant %q (known: %v)", name, names)
}
