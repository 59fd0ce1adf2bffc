package crud

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oshokin/secpi-console/internal/domain/entity"
)

// errImportNotList is returned when import text is not a JSON array.
var errImportNotList = errors.New("import data must be a list of records")

// Record is one element of the export/import envelope.
type Record struct {
	// Type is the collection name of the class, e.g. "zones".
	Type string `json:"type"`
	// Data is the entity's field mapping.
	Data entity.Entity `json:"data"`
}

// EncodeRecords renders entities of class as indented envelope text.
func EncodeRecords(class entity.Class, items []entity.Entity) (string, error) {
	records := make([]Record, 0, len(items))
	for _, item := range items {
		records = append(records, Record{Type: class.Collection(), Data: item})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode export: %w", err)
	}

	return string(data), nil
}

// DecodeRecords parses envelope text and keeps the records whose type and data are present.
func DecodeRecords(text string) ([]Record, error) {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, errImportNotList
		}

		return nil, fmt.Errorf("decode import: %w", err)
	}

	records := make([]Record, 0, len(raw))

	for i, item := range raw {
		rawType, rawData := item["type"], item["data"]
		if isAbsent(rawType) || isAbsent(rawData) {
			continue
		}

		var rec Record
		if err := json.Unmarshal(rawType, &rec.Type); err != nil {
			return nil, fmt.Errorf("decode import record %d type: %w", i, err)
		}

		if err := json.Unmarshal(rawData, &rec.Data); err != nil {
			return nil, fmt.Errorf("decode import record %d data: %w", i, err)
		}

		records = append(records, rec)
	}

	return records, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
