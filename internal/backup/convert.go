package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"gorm.io/gorm/schema"
)

var timeType = reflect.TypeOf(time.Time{})

// decodeRows parses a table's JSON rows and converts each value back to the
// Go type its column expects, so drivers see times and booleans rather than
// strings and floats.
func decodeRows(raw json.RawMessage, s *schema.Schema) ([]map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rows []map[string]interface{}
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		for col, v := range row {
			f := s.LookUpField(col)
			if f == nil {
				delete(row, col)
				continue
			}
			cv, err := convert(v, f.IndirectFieldType)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col, err)
			}
			row[col] = cv
		}
	}
	return rows, nil
}

func convert(v interface{}, t reflect.Type) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch {
	case t == timeType:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want time string, got %T", v)
		}
		return time.Parse(time.RFC3339Nano, s)
	case t.Kind() == reflect.Bool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case json.Number:
			n, err := b.Int64()
			return n != 0, err
		}
		return nil, fmt.Errorf("want bool, got %T", v)
	case t.Kind() >= reflect.Int && t.Kind() <= reflect.Uint64:
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("want integer, got %T", v)
		}
		return n.Int64()
	case t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64:
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("want number, got %T", v)
		}
		return n.Float64()
	}
	return v, nil
}
