package services

import (
	"sort"

	"car-price-predictor/models"
)

// FitLabelTable assigns every category seen in vehicles a code, in first-seen order.
func FitLabelTable(vehicles []models.Vehicle) *models.EncoderTable {
	var values [models.NumCategorical][]string
	seen := make([]map[string]struct{}, models.NumCategorical)
	for col := range seen {
		seen[col] = make(map[string]struct{})
	}
	for _, v := range vehicles {
		for col, a := range v.Attrs {
			if _, ok := seen[col][a]; ok {
				continue
			}
			seen[col][a] = struct{}{}
			values[col] = append(values[col], a)
		}
	}
	return models.NewEncoderTable(values)
}

// FitOneHotTable keeps the maxPerColumn most frequent categories of each
// column, most frequent first with ties in first-seen order. maxPerColumn <= 0
// keeps every category.
func FitOneHotTable(vehicles []models.Vehicle, maxPerColumn int) *models.EncoderTable {
	type entry struct {
		value string
		count int
		first int
	}
	var values [models.NumCategorical][]string
	for col := 0; col < models.NumCategorical; col++ {
		index := make(map[string]int)
		var entries []entry
		for _, v := range vehicles {
			a := v.Attrs[col]
			if i, ok := index[a]; ok {
				entries[i].count++
				continue
			}
			index[a] = len(entries)
			entries = append(entries, entry{value: a, count: 1, first: len(entries)})
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].count > entries[j].count
		})
		if maxPerColumn > 0 && len(entries) > maxPerColumn {
			entries = entries[:maxPerColumn]
		}
		for _, e := range entries {
			values[col] = append(values[col], e.value)
		}
	}
	return models.NewEncoderTable(values)
}

// LabelEncoder maps categories to codes through an immutable table. Unknown
// values are routed through the fallback policy; the table itself is never extended.
type LabelEncoder struct {
	table  *models.EncoderTable
	policy models.FallbackPolicy
}

// NewLabelEncoder wraps a fitted table with a fallback policy.
func NewLabelEncoder(table *models.EncoderTable, policy models.FallbackPolicy) *LabelEncoder {
	return &LabelEncoder{table: table, policy: policy}
}

// Transform returns the code for value in column col and whether a fallback
// was substituted. The code is always in [0, k) for a non-empty column.
func (e *LabelEncoder) Transform(col int, value string) (int, bool) {
	if code, ok := e.table.Lookup(col, value); ok {
		return code, false
	}
	return e.fallback(col), true
}

func (e *LabelEncoder) fallback(col int) int {
	if e.policy == models.FallbackMissing {
		if code, ok := e.table.Lookup(col, models.MissingCategory); ok {
			return code
		}
	}
	return 0
}

// Inverse returns the category for a code.
func (e *LabelEncoder) Inverse(col, code int) (string, bool) {
	return e.table.Category(col, code)
}

// FeatureEncoder builds model input vectors in the exact column order of a schema.
type FeatureEncoder struct {
	schema  models.Schema
	table   *models.EncoderTable
	labels  *LabelEncoder
	offsets [models.NumCategorical]int
	width   int
}

// NewFeatureEncoder prepares an encoder for the given schema and table.
func NewFeatureEncoder(schema models.Schema, table *models.EncoderTable) *FeatureEncoder {
	fe := &FeatureEncoder{
		schema: schema,
		table:  table,
		labels: NewLabelEncoder(table, schema.Fallback),
	}

	pos := 0
	if schema.FeatureSet != models.FeatureSetDerived {
		pos = 2
	}
	for col := 0; col < models.NumCategorical; col++ {
		fe.offsets[col] = pos
		if schema.Encoding == models.EncodingOneHot {
			pos += table.Len(col)
		} else {
			pos++
		}
	}
	if schema.FeatureSet == models.FeatureSetDerived {
		pos += 2
	}
	fe.width = pos
	return fe
}

// Width is the length of every encoded vector.
func (fe *FeatureEncoder) Width() int { return fe.width }

// FeatureNames lists the encoded columns in vector order.
func (fe *FeatureEncoder) FeatureNames() []string {
	names := make([]string, 0, fe.width)
	if fe.schema.FeatureSet != models.FeatureSetDerived {
		names = append(names, models.ColumnYear, models.ColumnOdometer)
	}
	for col, name := range models.CategoricalColumns {
		if fe.schema.Encoding == models.EncodingOneHot {
			for _, cat := range fe.table.Categories(col) {
				names = append(names, name+"="+cat)
			}
			continue
		}
		names = append(names, name)
	}
	if fe.schema.FeatureSet == models.FeatureSetDerived {
		names = append(names, FeatureCarAge, FeatureOdoPerYear)
	}
	return names
}

// Encode writes the feature vector for v into a new slice and returns the
// indexes of categorical columns whose value was not known to the table.
func (fe *FeatureEncoder) Encode(v models.Vehicle) ([]float64, []int) {
	x := make([]float64, fe.width)
	var unseen []int

	if fe.schema.FeatureSet == models.FeatureSetDerived {
		age := CarAge(fe.schema.ReferenceYear, v.Year)
		x[fe.width-2] = age
		x[fe.width-1] = OdoPerYear(v.Odometer, age)
	} else {
		x[0] = v.Year
		x[1] = v.Odometer
	}

	for col, a := range v.Attrs {
		if fe.schema.Encoding == models.EncodingOneHot {
			if code, ok := fe.table.Lookup(col, a); ok {
				x[fe.offsets[col]+code] = 1
			} else {
				unseen = append(unseen, col)
			}
			continue
		}
		code, fellBack := fe.labels.Transform(col, a)
		if fellBack {
			unseen = append(unseen, col)
		}
		x[fe.offsets[col]] = float64(code)
	}
	return x, unseen
}
