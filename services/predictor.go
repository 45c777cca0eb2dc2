package services

import (
	"context"
	"math"

	"car-price-predictor/models"
	"car-price-predictor/utils"
)

// Prediction is the result of scoring one record.
type Prediction struct {
	// Price is the predicted price in dollars, never negative.
	Price float64
	// Raw is the model output before inverting the target transform.
	Raw float64
	// Unseen names the categorical columns whose value was unknown to the encoder.
	Unseen []string
}

// Predictor scores records against one loaded bundle. It only reads the
// bundle and is safe for concurrent use.
type Predictor struct {
	bundle  *models.Bundle
	encoder *FeatureEncoder
	logger  *utils.Logger
}

// NewPredictor prepares a predictor for bundle.
func NewPredictor(bundle *models.Bundle, logger *utils.Logger) *Predictor {
	return &Predictor{
		bundle:  bundle,
		encoder: NewFeatureEncoder(bundle.Schema, bundle.Encoder),
		logger:  logger,
	}
}

// Bundle returns the bundle the predictor scores with.
func (p *Predictor) Bundle() *models.Bundle { return p.bundle }

// Predict imputes missing fields from the bundle's training medians, encodes
// the record and returns the model's price. It fails only if ctx is done.
func (p *Predictor) Predict(ctx context.Context, r models.Record) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	v, _, _ := Impute(r, p.bundle.Schema.Medians)
	return p.PredictVehicle(v), nil
}

// PredictVehicle scores a complete vehicle.
func (p *Predictor) PredictVehicle(v models.Vehicle) Prediction {
	x, unseen := p.encoder.Encode(v)
	raw := p.bundle.Model.Predict(x)

	out := Prediction{Raw: raw, Price: math.Max(InvertTarget(p.bundle.Schema.TargetTransform, raw), 0)}
	if len(unseen) > 0 {
		out.Unseen = make([]string, len(unseen))
		for i, col := range unseen {
			out.Unseen[i] = models.CategoricalColumns[col]
		}
		p.logger.Debug("[predictor] Unseen categories remapped: %v", out.Unseen)
	}
	return out
}
