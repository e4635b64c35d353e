package dataset

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Load reads a numeric CSV dataset where every column but the last is a
// feature and the last column is the label.  A non-numeric first row is
// treated as a header and skipped.
func Load(path string) (x *mat.Dense, y []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "dataset: opening csv")
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, errors.Wrap(err, "dataset: reading csv")
	}
	if len(records) > 0 {
		if _, err := strconv.ParseFloat(records[0][0], 64); err != nil {
			records = records[1:]
		}
	}
	if len(records) == 0 {
		return nil, nil, errors.Errorf("dataset: %v holds no data rows", path)
	}

	cols := len(records[0])
	if cols < 2 {
		return nil, nil, errors.Errorf("dataset: %v needs at least one feature and one label column", path)
	}

	x = mat.NewDense(len(records), cols-1, nil)
	y = make([]float64, len(records))
	for i, rec := range records {
		if len(rec) != cols {
			return nil, nil, errors.Errorf("dataset: row %v has %v columns, want %v", i, len(rec), cols)
		}
		for j, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "dataset: row %v column %v", i, j)
			}
			if j < cols-1 {
				x.Set(i, j, v)
			} else {
				y[i] = v
			}
		}
	}
	return x, y, nil
}
