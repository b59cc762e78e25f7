package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifold-labs/promptlab/internal/promptlaberrors"
)

// LoadJSONL reads one JSON object per line into a Dataset. Columns not
// named in inputColumns/outputColumn are ignored; columns named but absent
// from a given line yield an empty string rather than an error (spec §6).
func LoadJSONL(path string, inputColumns []string, outputColumn string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", promptlaberrors.ErrInvalidDataset, path, err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", promptlaberrors.ErrInvalidDataset, path, lineNo, err)
		}
		records = append(records, rowToRecord(row, inputColumns, outputColumn))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", promptlaberrors.ErrInvalidDataset, path, err)
	}
	return New(records, inputColumns, []string{outputColumn})
}

// LoadCSV reads a header-row CSV file into a Dataset with the same
// missing-column policy as LoadJSONL.
func LoadCSV(path string, inputColumns []string, outputColumn string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", promptlaberrors.ErrInvalidDataset, path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: missing header row: %v", promptlaberrors.ErrInvalidDataset, path, err)
	}

	var records []Record
	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", promptlaberrors.ErrInvalidDataset, path, err)
		}
		row := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(fields) {
				row[col] = fields[i]
			}
		}
		records = append(records, rowToRecord(row, inputColumns, outputColumn))
	}
	return New(records, inputColumns, []string{outputColumn})
}

func rowToRecord(row map[string]any, inputColumns []string, outputColumn string) Record {
	rec := Record{Inputs: make(map[string]string, len(inputColumns)), Outputs: make(map[string]string, 1)}
	for _, col := range inputColumns {
		rec.Inputs[col] = stringify(row[col])
	}
	rec.Outputs[outputColumn] = stringify(row[outputColumn])
	return rec
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
