package store

import (
	"fmt"
	"time"

	"github.com/roach88/typesql/internal/canonical"
	"github.com/roach88/typesql/internal/datatype"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// marshalColumn converts a fixture value to what SQLite stores for a
// column of domain t. json and array columns hold canonical JSON TEXT;
// timestamps given as strings are parsed so the driver stores one format.
func marshalColumn(v any, t datatype.Type) (any, error) {
	if v == nil {
		if !datatype.IsNullable(t) {
			return nil, fmt.Errorf("null for non-nullable %s", t)
		}
		return nil, nil
	}

	switch datatype.NonNullable(t).(type) {
	case datatype.JSON, datatype.Array:
		data, err := canonical.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", t, err)
		}
		return string(data), nil
	case datatype.Timestamp:
		s, ok := v.(string)
		if !ok {
			return v, nil
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), nil
			}
		}
		return nil, fmt.Errorf("invalid timestamp %q", s)
	}
	return v, nil
}
