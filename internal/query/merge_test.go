package query

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	id      string
	updated string
	source  string
}

func (r row) RecordID() string    { return r.id }
func (r row) LastUpdated() string { return r.updated }

func ids(rows []row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.id)
	}
	sort.Strings(out)
	return out
}

func byID(rows []row) map[string]row {
	m := make(map[string]row, len(rows))
	for _, r := range rows {
		m[r.id] = r
	}
	return m
}

func TestMerge_BothEmpty(t *testing.T) {
	assert.Empty(t, Merge[row](nil, nil, nil))
}

func TestMerge_LocalFirstAvailability(t *testing.T) {
	local := []row{{id: "a1"}, {id: "a2"}}
	merged := Merge(local, nil, nil)
	assert.Equal(t, []string{"a1", "a2"}, ids(merged))
}

func TestMerge_CloudOnlyRecordInserted(t *testing.T) {
	local := []row{{id: "a1", source: "local"}}
	cloud := []row{{id: "a2", source: "cloud"}}

	merged := byID(Merge(local, cloud, nil))
	require.Len(t, merged, 2)
	assert.Equal(t, "local", merged["a1"].source)
	assert.Equal(t, "cloud", merged["a2"].source)
}

func TestMerge_NewerCloudWins(t *testing.T) {
	// scenario from the merge contract: a1 updated in the cloud, a2 cloud-only
	local := []row{{id: "a1", updated: "2024-01-01", source: "local"}}
	cloud := []row{
		{id: "a1", updated: "2024-01-02", source: "cloud"},
		{id: "a2", updated: "2024-01-01", source: "cloud"},
	}

	merged := byID(Merge(local, cloud, nil))
	require.Len(t, merged, 2)
	assert.Equal(t, "cloud", merged["a1"].source)
	assert.Equal(t, "cloud", merged["a2"].source)
}

func TestMerge_LocalWinsTiesAndMissing(t *testing.T) {
	tests := []struct {
		name           string
		localT, cloudT string
	}{
		{"equal timestamps", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z"},
		{"cloud older", "2024-01-02T00:00:00Z", "2024-01-01T00:00:00Z"},
		{"cloud missing timestamp", "2024-01-01T00:00:00Z", ""},
		{"local missing timestamp", "", "2024-01-02T00:00:00Z"},
		{"both missing", "", ""},
		{"cloud unparseable", "2024-01-01T00:00:00Z", "later"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := []row{{id: "a1", updated: tt.localT, source: "local"}}
			cloud := []row{{id: "a1", updated: tt.cloudT, source: "cloud"}}

			merged := Merge(local, cloud, nil)
			require.Len(t, merged, 1)
			assert.Equal(t, "local", merged[0].source)
		})
	}
}

func TestMerge_ExactlyOnePerIdentity(t *testing.T) {
	local := []row{{id: "a"}, {id: "b"}, {id: "a"}}
	cloud := []row{{id: "b"}, {id: "c"}, {id: "c"}}

	merged := Merge(local, cloud, nil)
	assert.Equal(t, []string{"a", "b", "c"}, ids(merged))
}

func TestMerge_Idempotence(t *testing.T) {
	local := []row{
		{id: "a1", updated: "2024-01-01", source: "local"},
		{id: "a3", updated: "", source: "local"},
	}
	cloud := []row{
		{id: "a1", updated: "2024-01-02", source: "cloud"},
		{id: "a2", updated: "2024-01-01", source: "cloud"},
	}

	once := Merge(local, cloud, nil)
	twice := Merge(local, once, nil)
	assert.Equal(t, byID(once), byID(twice))
}

func TestMerge_CustomIdentity(t *testing.T) {
	local := []row{{id: "x", source: "local"}}
	cloud := []row{{id: "y", source: "cloud"}}

	// collapse everything onto one identity: local priority keeps the local row
	merged := Merge(local, cloud, func(row) string { return "same" })
	require.Len(t, merged, 1)
	assert.Equal(t, "local", merged[0].source)
}
