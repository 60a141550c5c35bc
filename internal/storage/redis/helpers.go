package redis

import (
	"encoding/json"
	"fmt"

	"github.com/goodtune/screencheck/internal/storage"
)

// parseCycleRecord converts a list element to a CycleRecord
func parseCycleRecord(data string) (*storage.CycleRecord, error) {
	if data == "" {
		return nil, storage.ErrNotFound
	}

	var record storage.CycleRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to parse cycle record: %w", err)
	}

	return &record, nil
}

// defaultsArgs flattens a map into HSETNX field/value pairs
func defaultsArgs(values map[string]string) []interface{} {
	args := make([]interface{}, 0, len(values)*2)
	for k, v := range values {
		args = append(args, k, v)
	}
	return args
}
