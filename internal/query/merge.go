package query

import "github.com/dmitrijs2005/questsync/internal/record"

// Merge combines a local and a cloud result set into one slice holding
// exactly one record per identity.
//
// Rules, in order:
//   - every local row is present ("local priority" — the merged view is
//     usable with no cloud access at all);
//   - a cloud row with an unseen identity is inserted (created elsewhere,
//     already synced down);
//   - a cloud row with a known identity replaces the local row only when its
//     timestamp is strictly greater; ties, missing or unparseable timestamps
//     keep the local row.
//
// This is last-write-wins at record granularity: a newer record fully
// clobbers the older one, fields are never merged. Output order is
// undefined; callers sort if they need stable order.
func Merge[R record.Identified](local, cloud []R, identity record.IdentityFunc[R]) []R {
	if len(local) == 0 && len(cloud) == 0 {
		return nil
	}

	result := make(map[string]R, len(local)+len(cloud))
	order := make([]string, 0, len(local)+len(cloud))

	for _, l := range local {
		k := record.IdentityOf(l, identity)
		if _, seen := result[k]; !seen {
			order = append(order, k)
		}
		result[k] = l
	}

	for _, c := range cloud {
		k := record.IdentityOf(c, identity)
		existing, seen := result[k]
		if !seen {
			result[k] = c
			order = append(order, k)
			continue
		}
		if record.Newer(record.UpdatedAtOf(existing), record.UpdatedAtOf(c)) {
			result[k] = c
		}
	}

	out := make([]R, 0, len(order))
	for _, k := range order {
		out = append(out, result[k])
	}
	return out
}
