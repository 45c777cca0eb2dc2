package models

// MissingCategory is the sentinel written into categorical fields that had no value.
const MissingCategory = "missing"

// Categorical column indexes into Record.Attrs / Vehicle.Attrs, in canonical feature order.
const (
	Manufacturer = iota
	Model
	Condition
	Cylinders
	Fuel
	TitleStatus
	Transmission
	Drive
	Size
	Type
	PaintColor

	NumCategorical
)

// CategoricalColumns holds the CSV/JSON column name for each categorical index.
var CategoricalColumns = [NumCategorical]string{
	"manufacturer",
	"model",
	"condition",
	"cylinders",
	"fuel",
	"title_status",
	"transmission",
	"drive",
	"size",
	"type",
	"paint_color",
}

// Numeric column names.
const (
	ColumnPrice    = "price"
	ColumnYear     = "year"
	ColumnOdometer = "odometer"
)

// RequiredColumns lists every column the input CSV must carry.
func RequiredColumns() []string {
	cols := []string{ColumnPrice, ColumnYear, ColumnOdometer}
	return append(cols, CategoricalColumns[:]...)
}

// Record is one raw listing as loaded from CSV or received over HTTP.
// A nil numeric or an empty categorical means the value is missing.
type Record struct {
	Price    *float64
	Year     *float64
	Odometer *float64
	Attrs    [NumCategorical]string
}

// Vehicle is a cleaned record: every field is present.
// It is comparable, so exact duplicates can be detected by value.
type Vehicle struct {
	Price    float64
	Year     float64
	Odometer float64
	Attrs    [NumCategorical]string
}

// Medians holds the numeric column medians used to fill missing values.
type Medians struct {
	Price    float64 `json:"price"`
	Year     float64 `json:"year"`
	Odometer float64 `json:"odometer"`
}

// Float returns a pointer to v, handy for building records in code.
func Float(v float64) *float64 { return &v }

// ExampleRecord is the reference listing used by the predict command when no
// input is given: a 2015 Toyota Corolla with 60,000 miles.
func ExampleRecord() Record {
	r := Record{Year: Float(2015), Odometer: Float(60000)}
	r.Attrs = [NumCategorical]string{
		"toyota", "corolla", "Excellent", "4 cylinders", "gas", "clean",
		"automatic", "fwd", "mid-size", "sedan", "white",
	}
	return r
}
