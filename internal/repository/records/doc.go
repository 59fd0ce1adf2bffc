// Package records persists the mock API's record store.
//
// The FileRepository stores and loads a Snapshot as JSON on disk and exposes a
// Repository interface that the mock API service depends on.
package records
