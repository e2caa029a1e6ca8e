package query

import "fmt"

// CloudError wraps a failed cloud fetch. It is captured at the merge
// boundary and never fails the query: the local half still renders and the
// view degrades to local-only until the next successful cloud fetch.
type CloudError struct {
	Err error
}

func (e *CloudError) Error() string { return fmt.Sprintf("cloud query failed: %v", e.Err) }

func (e *CloudError) Unwrap() error { return e.Err }
