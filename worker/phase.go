package worker

// Phase is the announcer's position in the tick state machine.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseParsing
	PhaseDiffing
	PhaseDispatching
	PhasePersisting
	// PhaseCancelled is terminal.
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFetching:
		return "fetching"
	case PhaseParsing:
		return "parsing"
	case PhaseDiffing:
		return "diffing"
	case PhaseDispatching:
		return "dispatching"
	case PhasePersisting:
		return "persisting"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
