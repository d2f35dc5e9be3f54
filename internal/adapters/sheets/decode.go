package sheets

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DataField is the envelope key holding the records.
const DataField = "data"

// DecodeError reports a body that is not a usable {"data":[...]} envelope.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return "decode envelope: " + e.Reason + ": " + e.Err.Error()
	}
	return "decode envelope: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode extracts the records from an envelope body. Records are decoded as
// given: absent fields stay empty, unknown fields are ignored and non-string
// values are kept as their JSON text (a date cell typed as 2025 reads "2025").
// Only the envelope shape and each record being an object are checked.
// T must be a struct of string fields.
// POST: len(result) == len(data) and order is preserved, or a *DecodeError
func Decode[T any](body []byte) ([]T, error) {
	if !json.Valid(body) {
		return nil, &DecodeError{Reason: "body is not valid JSON"}
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil || envelope == nil {
		return nil, &DecodeError{Reason: "envelope is not a JSON object"}
	}

	raw, ok := envelope[DataField]
	if !ok {
		return nil, &DecodeError{Reason: fmt.Sprintf("envelope has no %q field", DataField)}
	}
	if !startsWith(raw, '[') {
		return nil, &DecodeError{Reason: fmt.Sprintf("%q is not an array", DataField)}
	}

	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &DecodeError{Reason: fmt.Sprintf("%q is not an array", DataField), Err: err}
	}

	items := make([]T, len(records))
	for i, rec := range records {
		if !startsWith(rec, '{') {
			return nil, &DecodeError{Reason: fmt.Sprintf("%s[%d] is not an object", DataField, i)}
		}
		flat, err := stringifyFields(rec)
		if err != nil {
			return nil, &DecodeError{Reason: fmt.Sprintf("%s[%d] is not an object", DataField, i), Err: err}
		}
		if err := json.Unmarshal(flat, &items[i]); err != nil {
			return nil, &DecodeError{Reason: fmt.Sprintf("%s[%d] has a mistyped field", DataField, i), Err: err}
		}
	}
	return items, nil
}

// stringifyFields rewrites every field of a record that is neither a string
// nor null as a string holding its compact JSON text.
func stringifyFields(rec json.RawMessage) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(rec, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		v = bytes.TrimSpace(v)
		if startsWith(v, '"') || bytes.Equal(v, []byte("null")) {
			continue
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, v); err != nil {
			return nil, err
		}
		s, err := json.Marshal(compact.String())
		if err != nil {
			return nil, err
		}
		fields[k] = s
	}
	return json.Marshal(fields)
}

func startsWith(raw json.RawMessage, c byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == c
}
