package record

// Map is the loosely-typed record shape produced by raw SQL executors and by
// the generic cloud endpoints: one row as a field map. It satisfies both
// Identified and Timestamped using the conventional column names.
type Map map[string]any

// RecordID returns the "id" field, or "" when absent or not a string.
func (m Map) RecordID() string {
	v, _ := m["id"].(string)
	return v
}

// LastUpdated returns the "last_updated" field, or "" when absent.
func (m Map) LastUpdated() string {
	v, _ := m["last_updated"].(string)
	return v
}

// Clone returns a shallow copy of the map. Realtime patching replaces whole
// entries, so a shallow copy is enough to keep cached snapshots isolated.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
