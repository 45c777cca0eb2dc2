package services

import (
	"sort"

	"car-price-predictor/models"
	"car-price-predictor/utils"
)

// CleanOptions controls which rows the cleaner drops.
type CleanOptions struct {
	// RequirePrice drops rows with no price instead of imputing one.
	RequirePrice bool
	// DropNonPositivePrice drops rows whose price is zero or negative.
	DropNonPositivePrice bool
}

// CleanStats summarises one cleaning pass.
type CleanStats struct {
	RowsIn           int
	RowsOut          int
	MissingPrice     int
	NonPositivePrice int
	Duplicates       int
	ImputedNumeric   int
	ImputedCategory  int
	Medians          models.Medians
}

// Cleaner turns raw records into complete, de-duplicated vehicles.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean fills missing numerics with medians computed over every input row,
// fills missing categoricals with "missing", then drops rows per opts and
// exact duplicates. Output order follows input order.
func (c *Cleaner) Clean(records []models.Record, opts CleanOptions) ([]models.Vehicle, CleanStats) {
	stats := CleanStats{RowsIn: len(records), Medians: ComputeMedians(records)}
	seen := utils.NewKeySet[models.Vehicle](len(records))
	result := make([]models.Vehicle, 0, len(records))

	for _, r := range records {
		if r.Price == nil && opts.RequirePrice {
			stats.MissingPrice++
			continue
		}
		if r.Price != nil && *r.Price <= 0 && opts.DropNonPositivePrice {
			stats.NonPositivePrice++
			continue
		}

		v, numeric, category := Impute(r, stats.Medians)
		stats.ImputedNumeric += numeric
		stats.ImputedCategory += category

		if !seen.Add(v) {
			stats.Duplicates++
			continue
		}
		result = append(result, v)
	}
	stats.RowsOut = len(result)

	c.logger.Info("[cleaner] Cleaned %d → %d rows (missing price %d, non-positive %d, duplicates %d)",
		stats.RowsIn, stats.RowsOut, stats.MissingPrice, stats.NonPositivePrice, stats.Duplicates)
	c.logger.Debug("[cleaner] Imputed %d numeric and %d categorical values; medians year=%.1f odometer=%.1f price=%.1f",
		stats.ImputedNumeric, stats.ImputedCategory, stats.Medians.Year, stats.Medians.Odometer, stats.Medians.Price)
	return result, stats
}

// Impute completes a single record from the given medians and reports how many
// numeric and categorical values it filled.
func Impute(r models.Record, med models.Medians) (v models.Vehicle, numeric, category int) {
	fill := func(p *float64, fallback float64) float64 {
		if p == nil {
			numeric++
			return fallback
		}
		return *p
	}
	v.Price = fill(r.Price, med.Price)
	v.Year = fill(r.Year, med.Year)
	v.Odometer = fill(r.Odometer, med.Odometer)

	for i, a := range r.Attrs {
		if a == "" {
			a = models.MissingCategory
			category++
		}
		v.Attrs[i] = a
	}
	return v, numeric, category
}

// ComputeMedians returns the median of each numeric column over the present values.
func ComputeMedians(records []models.Record) models.Medians {
	var price, year, odo []float64
	for _, r := range records {
		if r.Price != nil {
			price = append(price, *r.Price)
		}
		if r.Year != nil {
			year = append(year, *r.Year)
		}
		if r.Odometer != nil {
			odo = append(odo, *r.Odometer)
		}
	}
	return models.Medians{Price: median(price), Year: median(year), Odometer: median(odo)}
}

// median averages the two middle values for even counts; an empty column yields 0.
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
