// Package status holds the shared lifecycle statuses used across
// documents. Units are never hard-deleted; they move to Inactive.
package status

const (
	Active   = "active"
	Inactive = "inactive"

	// Bearer term statuses.
	Completed  = "completed"
	Terminated = "terminated"
)
