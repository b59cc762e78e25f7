// Package dataset holds the Dataset/DatasetRecord model of spec §3: an
// ordered, read-only-once-loaded sequence of labeled records with declared
// input/output columns, supporting random and stratified splitting.
package dataset

import (
	"fmt"

	"github.com/manifold-labs/promptlab/internal/promptlaberrors"
)

// Record is one labeled example: named input columns and exactly one
// ground-truth output column (enforced at construction, spec §3).
type Record struct {
	Inputs  map[string]string
	Outputs map[string]string
}

// Output returns the single ground-truth value and its column name.
func (r Record) Output() (column, value string) {
	for k, v := range r.Outputs {
		return k, v
	}
	return "", ""
}

// Dataset is an ordered sequence of Records sharing declared column
// metadata. Loaded once; optimizers may partition it but never mutate
// record values.
type Dataset struct {
	Records       []Record
	InputColumns  []string
	OutputColumns []string // singleton, enforced by New/loaders
}

// New validates and constructs a Dataset from already-parsed records. Every
// record is checked for the single-output-column invariant.
func New(records []Record, inputColumns, outputColumns []string) (*Dataset, error) {
	if len(outputColumns) != 1 {
		return nil, fmt.Errorf("%w: exactly one output column required, got %d", promptlaberrors.ErrInvalidDataset, len(outputColumns))
	}
	for i, r := range records {
		if len(r.Outputs) != 1 {
			return nil, fmt.Errorf("%w: record %d has %d output values, want 1", promptlaberrors.ErrInvalidDataset, i, len(r.Outputs))
		}
	}
	return &Dataset{Records: records, InputColumns: inputColumns, OutputColumns: outputColumns}, nil
}

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.Records) }

// withRecords returns a new Dataset sharing this one's column metadata.
func (d *Dataset) withRecords(records []Record) *Dataset {
	return &Dataset{Records: records, InputColumns: d.InputColumns, OutputColumns: d.OutputColumns}
}
