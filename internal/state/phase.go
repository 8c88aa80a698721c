package state

import "fmt"

// Phase is where a device is in its movement cycle.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseEligible    Phase = "eligible"
	PhaseCommanding  Phase = "commanding"
	PhaseMoving      Phase = "moving"
	PhaseStabilizing Phase = "stabilizing"
	PhaseCapturing   Phase = "capturing"
	PhaseDetecting   Phase = "detecting"
	PhaseTargeting   Phase = "targeting"
)

// validTransitions lists the forward edges of the cycle. Every non-idle phase
// may additionally abort back to idle.
var validTransitions = map[Phase][]Phase{
	PhaseIdle:        {PhaseEligible},
	PhaseEligible:    {PhaseCommanding},
	PhaseCommanding:  {PhaseMoving},
	PhaseMoving:      {PhaseStabilizing},
	PhaseStabilizing: {PhaseCapturing},
	PhaseCapturing:   {PhaseDetecting},
	PhaseDetecting:   {PhaseTargeting},
	PhaseTargeting:   {},
}

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to Phase) bool {
	next, ok := validTransitions[from]
	if !ok {
		return false
	}
	if to == PhaseIdle {
		return from != PhaseIdle
	}
	for _, p := range next {
		if p == to {
			return true
		}
	}
	return false
}

// ErrInvalidTransition is returned by Transition for illegal moves.
type ErrInvalidTransition struct {
	From, To Phase
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid phase transition %s -> %s", e.From, e.To)
}
