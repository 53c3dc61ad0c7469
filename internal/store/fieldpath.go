package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Field paths use dotted notation, e.g. "stats.activeRentals" or
// "availability.blockedDates". Intermediate objects are created on write.

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

// getField resolves a dotted path inside a decoded document.
func getField(doc map[string]interface{}, path string) (interface{}, bool) {
	segments := splitPath(path)
	current := doc
	for index, segment := range segments {
		value, ok := current[segment]
		if !ok {
			return nil, false
		}
		if index == len(segments)-1 {
			return value, true
		}
		nested, ok := value.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current = nested
	}
	return nil, false
}

// setField writes a value at a dotted path, creating intermediate objects.
func setField(doc map[string]interface{}, path string, value interface{}) error {
	segments := splitPath(path)
	current := doc
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment]
		if !ok || next == nil {
			nested := map[string]interface{}{}
			current[segment] = nested
			current = nested
			continue
		}
		nested, ok := next.(map[string]interface{})
		if !ok {
			return fmt.Errorf("store: field %q is not an object", segment)
		}
		current = nested
	}
	current[segments[len(segments)-1]] = value
	return nil
}

// addToField increments a numeric field by delta. An absent field counts from zero.
func addToField(doc map[string]interface{}, path string, delta float64) error {
	existing, ok := getField(doc, path)
	if !ok || existing == nil {
		return setField(doc, path, delta)
	}
	current, ok := existing.(float64)
	if !ok {
		return fmt.Errorf("store: field %q is not numeric", path)
	}
	return setField(doc, path, current+delta)
}

// appendToArray appends values onto an array field, preserving order and
// duplicates. An absent field becomes a new array.
func appendToArray(doc map[string]interface{}, path string, values ...interface{}) error {
	existing, ok := getField(doc, path)
	if !ok || existing == nil {
		existing = []interface{}{}
	}
	elements, ok := existing.([]interface{})
	if !ok {
		return fmt.Errorf("store: field %q is not an array", path)
	}
	for _, value := range values {
		normalized, err := normalizeValue(value)
		if err != nil {
			return err
		}
		elements = append(elements, normalized)
	}
	return setField(doc, path, elements)
}

// removeFromArray removes every element equal to value and reports how many
// were removed. A missing field removes nothing.
func removeFromArray(doc map[string]interface{}, path string, value interface{}) (int, error) {
	existing, ok := getField(doc, path)
	if !ok || existing == nil {
		return 0, nil
	}
	elements, ok := existing.([]interface{})
	if !ok {
		return 0, fmt.Errorf("store: field %q is not an array", path)
	}
	needle, err := normalizeValue(value)
	if err != nil {
		return 0, err
	}
	kept := make([]interface{}, 0, len(elements))
	removed := 0
	for _, element := range elements {
		if reflect.DeepEqual(element, needle) {
			removed++
			continue
		}
		kept = append(kept, element)
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, setField(doc, path, kept)
}

// normalizeValue round-trips a Go value through JSON so comparisons against
// decoded document elements use the same representation (float64 numbers,
// map[string]interface{} objects).
func normalizeValue(value interface{}) (interface{}, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("store: encode value: %w", err)
	}
	var normalized interface{}
	if err := json.Unmarshal(encoded, &normalized); err != nil {
		return nil, fmt.Errorf("store: decode value: %w", err)
	}
	return normalized, nil
}

// Exported helpers for use inside Mutate callbacks.

// GetField resolves a dotted path inside a decoded document body.
func GetField(doc map[string]interface{}, path string) (interface{}, bool) {
	return getField(doc, path)
}

// SetField writes a value at a dotted path, creating intermediate objects.
func SetField(doc map[string]interface{}, path string, value interface{}) error {
	return setField(doc, path, value)
}

// AddToField increments a numeric field by delta inside a decoded body.
func AddToField(doc map[string]interface{}, path string, delta float64) error {
	return addToField(doc, path, delta)
}

// AppendToArray appends values onto an array field inside a decoded body.
func AppendToArray(doc map[string]interface{}, path string, values ...interface{}) error {
	return appendToArray(doc, path, values...)
}

// RemoveFromArray removes every element equal to value inside a decoded body.
func RemoveFromArray(doc map[string]interface{}, path string, value interface{}) (int, error) {
	return removeFromArray(doc, path, value)
}
