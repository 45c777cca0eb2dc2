package services

import (
	"math/rand"

	"car-price-predictor/config"
	"car-price-predictor/models"
	"car-price-predictor/regressor"
	"car-price-predictor/utils"
)

func newTestLogger() *utils.Logger { return utils.NewNopLogger() }

var (
	fixtureMakes  = []string{"ford", "chevrolet", "honda", "bmw"}
	fixtureModels = []string{"f-150", "silverado", "civic", "x5"}
	fixtureConds  = []string{"good", "excellent", "fair", "like new"}
	fixtureFuels  = []string{"gas", "diesel"}
	fixtureColors = []string{"black", "silver", "red", "blue"}
)

// syntheticRecords builds n listings whose price depends on year, odometer
// and make. Every tenth record leaves some fields empty.
func syntheticRecords(n int, seed int64) []models.Record {
	rng := rand.New(rand.NewSource(seed))
	out := make([]models.Record, n)
	for i := range out {
		mk := rng.Intn(len(fixtureMakes))
		year := 2000 + float64(rng.Intn(22))
		odo := float64(5000 + rng.Intn(200000))
		price := 8000 + (year-2000)*900 - odo*0.03 + float64(mk)*3000 + rng.Float64()*500

		r := models.Record{Price: models.Float(price), Year: models.Float(year), Odometer: models.Float(odo)}
		r.Attrs = [models.NumCategorical]string{
			fixtureMakes[mk],
			fixtureModels[mk],
			fixtureConds[rng.Intn(len(fixtureConds))],
			"6 cylinders",
			fixtureFuels[rng.Intn(len(fixtureFuels))],
			"clean",
			"automatic",
			"4wd",
			"full-size",
			"truck",
			fixtureColors[rng.Intn(len(fixtureColors))],
		}
		if i%10 == 0 {
			r.Odometer = nil
			r.Attrs[models.Condition] = ""
			r.Attrs[models.PaintColor] = ""
		}
		out[i] = r
	}
	return out
}

// quickVariant returns a small, fast copy of a built-in variant.
func quickVariant(name string) config.Variant {
	v := config.DefaultVariants()[name]
	v.Regressor.NEstimators = 30
	if v.Regressor.Kind == regressor.KindGBDT {
		v.Regressor.LearningRate = 0.2
		v.Regressor.MinChildSamples = 5
	} else {
		v.Regressor.NEstimators = 10
		v.Regressor.MinChildSamples = 2
	}
	v.Regressor.Workers = 2
	return v
}
