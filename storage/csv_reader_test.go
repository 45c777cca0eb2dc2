package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"car-price-predictor/models"
	"car-price-predictor/utils"
)

const header = "id,price,year,manufacturer,model,condition,cylinders,fuel,odometer,title_status,transmission,drive,size,type,paint_color,state\n"

func TestCSVReader_Read(t *testing.T) {
	data := header +
		"1,15000,2015.0,toyota,corolla,excellent,4 cylinders,gas,60000,clean,automatic,fwd,mid-size,sedan,white,ca\n" +
		"2,,2012,ford, f-150 ,,,gas,,clean,automatic,4wd,,truck,,tx\n" +
		"3,bad,row\n" +
		"4,9000,nan,honda,civic,good,4 cylinders,gas,120000,clean,manual,fwd,compact,sedan,blue,or\n"

	r := NewCSVReader(utils.NewNopLogger())
	records, stats, err := r.Read(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 3, stats.Rows)
	assert.Equal(t, 1, stats.Malformed)

	first := records[0]
	require.NotNil(t, first.Price)
	assert.Equal(t, 15000.0, *first.Price)
	assert.Equal(t, 2015.0, *first.Year)
	assert.Equal(t, 60000.0, *first.Odometer)
	assert.Equal(t, "toyota", first.Attrs[models.Manufacturer])
	assert.Equal(t, "white", first.Attrs[models.PaintColor])

	second := records[1]
	assert.Nil(t, second.Price)
	assert.Nil(t, second.Odometer)
	assert.Equal(t, "f-150", second.Attrs[models.Model])
	assert.Empty(t, second.Attrs[models.Condition])

	assert.Nil(t, records[2].Year)
}

func TestCSVReader_MissingColumns(t *testing.T) {
	_, _, err := NewCSVReader(utils.NewNopLogger()).Read(strings.NewReader("price,year\n1,2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "odometer")
	assert.Contains(t, err.Error(), "paint_color")
}

func TestCSVReader_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vehicles.csv")
	require.NoError(t, os.WriteFile(path, []byte(header+
		"1,500,2001,a,b,c,d,e,10,f,g,h,i,j,k,l\n"), 0o644))

	records, _, err := NewCSVReader(utils.NewNopLogger()).Load(path)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, _, err = NewCSVReader(utils.NewNopLogger()).Load(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
