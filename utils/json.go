package utils

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Marshal generic struct to JSON
func MarshalToJSON[T any](input T) (string, error) {
	jsonData, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

// Unmarshal JSON to generic struct
func UnmarshalFromJSON[T any](data []byte, output *T) error {
	return json.Unmarshal(data, output)
}

// ToJSONWithoutFields marshals obj dropping the named top-level fields.
// Fields are Go struct field names; their json tags are resolved before the
// keys are deleted from the marshaled object. Used when writing outbox
// payloads that must not carry associations.
func ToJSONWithoutFields(obj interface{}, fields ...string) ([]byte, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		// Not an object (nil, array, scalar): pass through unchanged.
		return raw, nil
	}
	for _, f := range fields {
		delete(m, jsonKeyForField(obj, f))
	}
	return json.Marshal(m)
}

// jsonKeyForField returns the marshaled key for a struct field, falling back
// to the field name itself when obj is not a struct or carries no json tag.
func jsonKeyForField(obj interface{}, fieldName string) string {
	t := reflect.TypeOf(obj)
	for t != nil && (t.Kind() == reflect.Ptr || t.Kind() == reflect.Interface) {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return fieldName
	}
	field, ok := t.FieldByName(fieldName)
	if !ok {
		return fieldName
	}
	tag := field.Tag.Get("json")
	if tag == "" || tag == "-" {
		return fieldName
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return fieldName
}
