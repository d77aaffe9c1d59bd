package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// LoadCSV reads a headered CSV file of numeric columns into a Frame
func LoadCSV(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset %s is empty", path)
	}

	names := records[0]
	data := make(map[string][]float64, len(names))
	for _, name := range names {
		data[name] = make([]float64, 0, len(records)-1)
	}

	for rowNum, record := range records[1:] {
		if len(record) != len(names) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", rowNum+2, len(record), len(names))
		}
		for i, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", rowNum+2, names[i], err)
			}
			data[names[i]] = append(data[names[i]], v)
		}
	}

	return NewFrame(names, data)
}
