package model

import "encoding/json"

// SatellitePosition is one row of a PositionMap.
type SatellitePosition struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position Vec3   `json:"position"`
}

// PositionMap is an immutable snapshot of satellite positions. Each position
// is stored once and indexed by both id and display name.
type PositionMap struct {
	rows   []SatellitePosition
	byID   map[string]int
	byName map[string]int
}

// NewPositionMap builds a snapshot from rows. Later rows do not override
// earlier ones for a duplicated key.
func NewPositionMap(rows []SatellitePosition) *PositionMap {
	m := &PositionMap{
		rows:   append([]SatellitePosition(nil), rows...),
		byID:   make(map[string]int, len(rows)),
		byName: make(map[string]int, len(rows)),
	}
	for i, r := range m.rows {
		if _, dup := m.byID[r.ID]; !dup && r.ID != "" {
			m.byID[r.ID] = i
		}
		if _, dup := m.byName[r.Name]; !dup && r.Name != "" {
			m.byName[r.Name] = i
		}
	}
	return m
}

// Len returns the number of satellites in the snapshot.
func (m *PositionMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rows)
}

// Get looks a position up by id, then by name.
func (m *PositionMap) Get(key string) (Vec3, bool) {
	if m == nil {
		return Vec3{}, false
	}
	if i, ok := m.byID[key]; ok {
		return m.rows[i].Position, true
	}
	if i, ok := m.byName[key]; ok {
		return m.rows[i].Position, true
	}
	return Vec3{}, false
}

// ByID looks a position up by id only.
func (m *PositionMap) ByID(id string) (Vec3, bool) {
	if m == nil {
		return Vec3{}, false
	}
	i, ok := m.byID[id]
	if !ok {
		return Vec3{}, false
	}
	return m.rows[i].Position, true
}

// Rows returns a copy of the snapshot rows in insertion order.
func (m *PositionMap) Rows() []SatellitePosition {
	if m == nil {
		return nil
	}
	return append([]SatellitePosition(nil), m.rows...)
}

// MarshalJSON encodes the snapshot as a list of rows.
func (m *PositionMap) MarshalJSON() ([]byte, error) {
	if m.Len() == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(m.rows)
}
