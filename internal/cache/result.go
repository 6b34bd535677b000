package cache

import "fmt"

// Status classifies the outcome of a write.
type Status int

const (
	// Stored means the backend applied the write.
	Stored Status = iota
	// Degraded means the write was skipped: no backend, or no room even after a purge.
	Degraded
	// Faulted means the write failed for a reason other than capacity.
	Faulted
)

func (s Status) String() string {
	switch s {
	case Stored:
		return "stored"
	case Degraded:
		return "degraded"
	case Faulted:
		return "faulted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result reports how a write went. Err is set for Faulted results and for
// Degraded results caused by the backend.
type Result struct {
	Status Status
	Err    error
}

// OK reports whether the write reached the backend.
func (r Result) OK() bool {
	return r.Status == Stored
}
