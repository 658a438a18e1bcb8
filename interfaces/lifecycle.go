package interfaces

// LifecycleState is the initialization state of a replica. It only ever moves forward:
// StateConstructed, then StateLoading, then StateReady.
type LifecycleState int

const (
	// StateConstructed means the replica exists but has not started loading.
	StateConstructed LifecycleState = iota
	// StateLoading means the initial reads from the backends are in progress. A replica whose
	// initial read failed stays in this state for the rest of its life.
	StateLoading
	// StateReady means the initial reads have completed and accessors may be used.
	StateReady
)

func (s LifecycleState) String() string {
	switch s {
	case StateConstructed:
		return "CONSTRUCTED"
	case StateLoading:
		return "LOADING"
	case StateReady:
		return "READY"
	default:
		return "UNKNOWN"
	}
}
