// Package query runs one logical query against the local replica and, while
// online, against the cloud store, and merges the two result sets into a
// single view keyed by record identity. The local half is authoritative for
// availability: cloud access is strictly additive and its failures never
// remove local data.
package query

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/questsync/internal/dbx"
	"github.com/dmitrijs2005/questsync/internal/record"
)

// Executor produces one result set. Local executors read the embedded
// replica; cloud executors call the authoritative backend.
type Executor[R record.Identified] func(ctx context.Context) ([]R, error)

// Compiled is a pre-built query object. Both raw SQL strings and compiled
// queries are accepted uniformly via FromSQL / FromCompiled.
type Compiled[R record.Identified] interface {
	Execute(ctx context.Context) ([]R, error)
}

// FromCompiled adapts a compiled query into an Executor.
func FromCompiled[R record.Identified](q Compiled[R]) Executor[R] {
	return q.Execute
}

// FromSQL builds a local executor from a raw SQL string. Rows are scanned
// into record.Map field maps keyed by column name; BLOB columns become
// strings so id/timestamp fields survive sqlite's loose typing.
func FromSQL(db dbx.DBTX, sqlText string, args ...any) Executor[record.Map] {
	return func(ctx context.Context) ([]record.Map, error) {
		rows, err := db.QueryContext(ctx, sqlText, args...)
		if err != nil {
			return nil, fmt.Errorf("local query failed: %w", err)
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return nil, err
		}

		var result []record.Map
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return nil, err
			}
			m := make(record.Map, len(cols))
			for i, col := range cols {
				if b, ok := values[i].([]byte); ok {
					m[col] = string(b)
					continue
				}
				m[col] = values[i]
			}
			result = append(result, m)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return result, nil
	}
}
