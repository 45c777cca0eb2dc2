package models

import (
	"bytes"
	"encoding/gob"
)

// EncoderTable maps each categorical column's known values to dense integer
// codes 0..k-1. It is built once at training time and never mutated afterwards.
type EncoderTable struct {
	columns [NumCategorical]columnTable
}

type columnTable struct {
	values []string
	codes  map[string]int
}

// NewEncoderTable builds a table from per-column value lists. The position of a
// value in its list is its code; repeated values keep their first position.
func NewEncoderTable(values [NumCategorical][]string) *EncoderTable {
	t := &EncoderTable{}
	for col, vs := range values {
		ct := columnTable{
			values: make([]string, 0, len(vs)),
			codes:  make(map[string]int, len(vs)),
		}
		for _, v := range vs {
			if _, ok := ct.codes[v]; ok {
				continue
			}
			ct.codes[v] = len(ct.values)
			ct.values = append(ct.values, v)
		}
		t.columns[col] = ct
	}
	return t
}

// Lookup returns the code assigned to value in column col.
func (t *EncoderTable) Lookup(col int, value string) (int, bool) {
	code, ok := t.columns[col].codes[value]
	return code, ok
}

// Category is the inverse of Lookup.
func (t *EncoderTable) Category(col, code int) (string, bool) {
	vs := t.columns[col].values
	if code < 0 || code >= len(vs) {
		return "", false
	}
	return vs[code], true
}

// Len returns the number of known categories in column col.
func (t *EncoderTable) Len(col int) int {
	return len(t.columns[col].values)
}

// Categories returns a copy of the known categories of column col in code order.
func (t *EncoderTable) Categories(col int) []string {
	return append([]string(nil), t.columns[col].values...)
}

// GobEncode writes only the ordered value lists; codes are rebuilt on decode.
func (t *EncoderTable) GobEncode() ([]byte, error) {
	var wire [NumCategorical][]string
	for col := range t.columns {
		wire[col] = t.columns[col].values
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wire); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode restores a table written by GobEncode.
func (t *EncoderTable) GobDecode(data []byte) error {
	var wire [NumCategorical][]string
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&wire); err != nil {
		return err
	}
	*t = *NewEncoderTable(wire)
	return nil
}
