package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"freshdesk-simulator/internal/domain"
	"freshdesk-simulator/internal/domain/ports/adapter"
)

// stripCodeFences removes every ```json and ``` marker.
func stripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func parseObject(generated string) (map[string]any, error) {
	var out map[string]any
	if err := decodeStrict(stripCodeFences(generated), &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: expected an object", domain.ErrMalformedGeneration)
	}
	return out, nil
}

// parseObjects accepts a JSON array of objects, or a single object wrapping
// one array value (models often answer {"contacts": [...]}).
func parseObjects(generated string) ([]map[string]any, error) {
	text := stripCodeFences(generated)
	var list []map[string]any
	if err := decodeStrict(text, &list); err == nil {
		return list, nil
	}
	var wrapper map[string]json.RawMessage
	if err := decodeStrict(text, &wrapper); err != nil {
		return nil, err
	}
	for _, v := range wrapper {
		if err := json.Unmarshal(v, &list); err == nil {
			return list, nil
		}
	}
	return nil, fmt.Errorf("%w: expected an array of objects", domain.ErrMalformedGeneration)
}

func decodeStrict(text string, dst any) error {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedGeneration, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON value", domain.ErrMalformedGeneration)
	}
	return nil
}

// payloadKey maps a ticket field name to its key in the create payload.
func payloadKey(fieldName string) string {
	if fieldName == "ticket_type" {
		return "type"
	}
	return fieldName
}

// normalizeChoices rewrites values of choice fields so numeric choices are
// sent as numbers. It handles the shapes Freshdesk uses:
//
//	{"Low": 1, "High": 4}                 label -> number
//	{"2": ["Open", "Open"], "3": [...]}   number -> labels
//	{"1": "Highest"}                      number -> label
//
// Array choice sets (plain labels) are left as strings.
func normalizeChoices(ticket map[string]any, fields []adapter.TicketField) {
	for k, v := range ticket {
		if n, ok := v.(json.Number); ok {
			ticket[k] = numberValue(n)
		}
	}
	for _, f := range fields {
		if !f.HasChoices() {
			continue
		}
		key := payloadKey(f.Name)
		val, ok := ticket[key]
		if !ok {
			continue
		}
		var choices map[string]json.RawMessage
		if err := json.Unmarshal(f.Choices, &choices); err != nil {
			continue
		}
		if n, ok := resolveChoice(val, choices); ok {
			ticket[key] = n
		}
	}
}

func resolveChoice(val any, choices map[string]json.RawMessage) (any, bool) {
	s, ok := val.(string)
	if !ok {
		return nil, false
	}
	s = strings.TrimSpace(s)
	for key, raw := range choices {
		// label -> number
		if key == s {
			var n json.Number
			if err := json.Unmarshal(raw, &n); err == nil {
				return numberValue(n), true
			}
		}
		keyNum, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		if key == s || choiceHasLabel(raw, s) {
			return keyNum, true
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && numericChoice(n, choices) {
		return n, true
	}
	return nil, false
}

func choiceHasLabel(raw json.RawMessage, label string) bool {
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return strings.EqualFold(one, label)
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		for _, m := range many {
			if strings.EqualFold(m, label) {
				return true
			}
		}
	}
	return false
}

func numericChoice(n int64, choices map[string]json.RawMessage) bool {
	want := []byte(strconv.FormatInt(n, 10))
	for _, raw := range choices {
		if bytes.Equal(bytes.TrimSpace(raw), want) {
			return true
		}
	}
	return false
}

func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
