package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseIdle, PhaseEligible, true},
		{PhaseIdle, PhaseIdle, false},
		{PhaseIdle, PhaseMoving, false},
		{PhaseEligible, PhaseCommanding, true},
		{PhaseEligible, PhaseIdle, true},
		{PhaseCommanding, PhaseMoving, true},
		{PhaseCommanding, PhaseCapturing, false},
		{PhaseMoving, PhaseStabilizing, true},
		{PhaseStabilizing, PhaseCapturing, true},
		{PhaseCapturing, PhaseDetecting, true},
		{PhaseCapturing, PhaseIdle, true},
		{PhaseDetecting, PhaseTargeting, true},
		{PhaseDetecting, PhaseIdle, true},
		{PhaseTargeting, PhaseIdle, true},
		{PhaseTargeting, PhaseEligible, false},
		{Phase("bogus"), PhaseIdle, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}
