package cache

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/mitchellh/mapstructure"
)

// decodeFields parses a payload into a generic field map, keeping numbers as
// json.Number so large IDs survive.
func decodeFields(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("failed to decode payload fields: %w", err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// mergeFields writes every present field into dst. Null values zero the
// target field and lists replace the previous list.
func mergeFields(fields map[string]any, dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ZeroFields:       true,
		Result:           dst,
	})
	if err != nil {
		return fmt.Errorf("failed to create field decoder: %w", err)
	}
	if err := dec.Decode(fields); err != nil {
		return fmt.Errorf("failed to merge fields into %T: %w", dst, err)
	}
	return nil
}

func without(fields map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		delete(fields, k)
	}
	return fields
}

func fieldID(fields map[string]any, key string) snowflake.ID {
	var s string
	switch v := fields[key].(type) {
	case string:
		s = v
	case json.Number:
		s = v.String()
	default:
		return 0
	}
	id, err := snowflake.Parse(s)
	if err != nil {
		return 0
	}
	return id
}

func fieldMap(fields map[string]any, key string) (map[string]any, bool) {
	m, ok := fields[key].(map[string]any)
	return m, ok
}
