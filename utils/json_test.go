package utils

import (
	"encoding/json"
	"testing"
)

type strippedOwner struct {
	Name string `json:"name"`
}

type strippedRecord struct {
	ID       int            `json:"id"`
	Owner    *strippedOwner `json:"owner,omitempty"`
	Item     *strippedOwner `json:"item,omitempty"`
	Untagged string
}

func TestToJSONWithoutFieldsStripsByGoFieldName(t *testing.T) {
	rec := &strippedRecord{
		ID:       1,
		Owner:    &strippedOwner{Name: "x"},
		Item:     &strippedOwner{Name: "y"},
		Untagged: "keep",
	}

	out, err := ToJSONWithoutFields(rec, "Owner", "Item")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("output is not a JSON object: %v", err)
	}
	if _, ok := m["owner"]; ok {
		t.Errorf("owner association survived the strip: %s", out)
	}
	if _, ok := m["item"]; ok {
		t.Errorf("item association survived the strip: %s", out)
	}
	if _, ok := m["id"]; !ok {
		t.Errorf("id was dropped: %s", out)
	}
	if _, ok := m["Untagged"]; !ok {
		t.Errorf("untagged field was dropped: %s", out)
	}
}

func TestToJSONWithoutFieldsUntaggedFieldName(t *testing.T) {
	rec := strippedRecord{ID: 2, Untagged: "gone"}

	out, err := ToJSONWithoutFields(rec, "Untagged")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("output is not a JSON object: %v", err)
	}
	if _, ok := m["Untagged"]; ok {
		t.Errorf("untagged field survived the strip: %s", out)
	}
}

func TestToJSONWithoutFieldsNonObjectPassthrough(t *testing.T) {
	out, err := ToJSONWithoutFields([]int{1, 2, 3}, "Owner")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "[1,2,3]" {
		t.Errorf("non-object input was altered: %s", out)
	}
}
