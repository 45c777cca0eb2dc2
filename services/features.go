package services

import (
	"math"

	"car-price-predictor/models"
)

// Derived feature names.
const (
	FeatureCarAge     = "car_age"
	FeatureOdoPerYear = "odo_per_year"
)

// DefaultPriceCap is the ceiling applied to prices when a variant enables capping
// and the ceiling used for true prices during evaluation.
const DefaultPriceCap = 200000

// CarAge is the vehicle's age in years relative to referenceYear.
func CarAge(referenceYear int, year float64) float64 {
	return float64(referenceYear) - year
}

// OdoPerYear spreads the odometer reading over the car's age plus one. Ages of
// -1 or less (model years after the reference year) use a divisor of 1.
func OdoPerYear(odometer, carAge float64) float64 {
	den := carAge + 1
	if den <= 0 {
		den = 1
	}
	return odometer / den
}

// CapPrice bounds price at limit; limit <= 0 disables capping.
func CapPrice(price, limit float64) float64 {
	if limit > 0 && price > limit {
		return limit
	}
	return price
}

// TransformTarget maps a price into the space the model is fit in. Negative
// prices are taken as 0 under log1p.
func TransformTarget(t models.TargetTransform, price float64) float64 {
	if t == models.TransformLog1p {
		return math.Log1p(math.Max(price, 0))
	}
	return price
}

// InvertTarget maps a model output back to a price.
func InvertTarget(t models.TargetTransform, y float64) float64 {
	if t == models.TransformLog1p {
		return math.Expm1(y)
	}
	return y
}
