package coordinator

import (
	"time"

	"github.com/taubenschiesser/hardware-monitor/internal/constants"
	"github.com/taubenschiesser/hardware-monitor/internal/models"
	"github.com/taubenschiesser/hardware-monitor/internal/state"
)

// Thresholds tune the eligibility rules.
type Thresholds struct {
	StuckAfter       time.Duration
	InactivitySeen   time.Duration
	InactivityUnseen time.Duration
}

// DefaultThresholds returns the production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		StuckAfter:       constants.DefaultStuckSessionAge,
		InactivitySeen:   constants.DefaultInactivitySeen,
		InactivityUnseen: constants.DefaultInactivityUnseen,
	}
}

// Skip reasons.
const (
	ReasonOffline    = "offline"
	ReasonMoving     = "moving"
	ReasonInProgress = "cycle in progress"
	ReasonSleeping   = "sleeping"
	ReasonWaiting    = "waiting for inactivity"
	ReasonBootstrap  = "never seen"
	ReasonInactive   = "inactive"
)

// Decision is the outcome of Evaluate. ClearStuck asks the caller to drop a
// movement session that outlived StuckAfter before moving the device again.
type Decision struct {
	Eligible   bool
	ClearStuck bool
	Reason     string
	Idle       time.Duration
}

// Evaluate decides whether device should be moved now. Checks run in a fixed
// order and the first failing one wins.
func Evaluate(s state.DeviceState, device models.Device, now time.Time, th Thresholds) Decision {
	var d Decision

	if device.Status == constants.StatusOffline {
		d.Reason = ReasonOffline
		return d
	}

	if s.Session != nil {
		if now.Sub(s.Session.StartedAt) <= th.StuckAfter {
			d.Reason = ReasonMoving
			return d
		}
		d.ClearStuck = true
	}

	if s.Phase != state.PhaseIdle {
		d.Reason = ReasonInProgress
		return d
	}

	if device.Sleep {
		d.Reason = ReasonSleeping
		return d
	}

	// Devices that never reported are moved once straight away; after that
	// they wait out the longer threshold counted from our last command.
	since, threshold := s.LastSeen, th.InactivitySeen
	if !s.Seen() {
		if s.LastCommanded.IsZero() {
			d.Eligible = true
			d.Reason = ReasonBootstrap
			return d
		}
		since, threshold = s.LastCommanded, th.InactivityUnseen
	}

	d.Idle = now.Sub(since)
	if d.Idle <= threshold {
		d.Reason = ReasonWaiting
		return d
	}
	d.Eligible = true
	d.Reason = ReasonInactive
	return d
}
