package realtime

import (
	"encoding/json"
	"fmt"
)

type ChangeType string

const (
	Insert ChangeType = "INSERT"
	Update ChangeType = "UPDATE"
	Delete ChangeType = "DELETE"
)

// ChangeEvent is one row change as emitted by the notify_table_change trigger.
// New is null for deletes and Old is null for inserts.
type ChangeEvent struct {
	Table string          `json:"table"`
	Type  ChangeType      `json:"type"`
	New   json.RawMessage `json:"new"`
	Old   json.RawMessage `json:"old"`
}

// Decode unmarshals the new row image into dst.
func (e ChangeEvent) Decode(dst any) error {
	return decodeRow(e.New, dst)
}

// DecodeOld unmarshals the previous row image into dst.
func (e ChangeEvent) DecodeOld(dst any) error {
	return decodeRow(e.Old, dst)
}

func decodeRow(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("row image is empty")
	}
	return json.Unmarshal(raw, dst)
}

// row returns the image filters are matched against: the new row, or the old
// one for deletes.
func (e ChangeEvent) row() map[string]any {
	raw := e.New
	if e.Type == Delete || len(raw) == 0 || string(raw) == "null" {
		raw = e.Old
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// Filter restricts a subscription to rows whose columns equal the given values.
type Filter map[string]string

func (f Filter) matches(e ChangeEvent) bool {
	if len(f) == 0 {
		return true
	}
	row := e.row()
	if row == nil {
		return false
	}
	for col, want := range f {
		v, ok := row[col]
		if !ok || v == nil || fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}
