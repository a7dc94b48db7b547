package proclock

// Liveness describes whether the process behind an identity still runs.
type Liveness int

const (
	// LivenessUnknown means the platform cannot tell.
	LivenessUnknown Liveness = iota
	// Alive means a process with that id exists.
	Alive
	// Dead means no process with that id exists; a record naming it is orphaned.
	Dead
)

// String returns a human-readable string for the liveness.
func (v Liveness) String() string {
	switch v {
	case Alive:
		return "alive"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// Probe reports whether the process id behind id is alive. It only
// observes; orphaned records are never removed automatically.
func Probe(id Identity) Liveness {
	if id <= 0 {
		return Dead
	}
	return probe(int(id))
}
