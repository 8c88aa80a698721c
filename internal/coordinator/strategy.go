package coordinator

import (
	"math"

	"github.com/taubenschiesser/hardware-monitor/internal/models"
)

// Strategy picks the next movement of a device.
type Strategy interface {
	Name() string
	// NextMovement returns the command to publish and, for route moves, the
	// waypoint it drives to.
	NextMovement(device models.Device, routeIndex int) (models.Command, *models.Waypoint)
}

// StepStrategy rotates by the device's step size on every cycle.
type StepStrategy struct{}

func (StepStrategy) Name() string { return "step" }

func (StepStrategy) NextMovement(device models.Device, _ int) (models.Command, *models.Waypoint) {
	return models.ImpulseCommand(device.StepSize(), 0), nil
}

// RouteStrategy drives to the waypoint at the current route index.
type RouteStrategy struct{}

func (RouteStrategy) Name() string { return "route" }

func (RouteStrategy) NextMovement(device models.Device, routeIndex int) (models.Command, *models.Waypoint) {
	wp, ok := device.WaypointAt(routeIndex)
	if !ok {
		return StepStrategy{}.NextMovement(device, routeIndex)
	}
	return models.MoveCommand(int(math.Round(wp.Rotation)), int(math.Round(wp.Tilt)), 0), &wp
}

// StrategyFor returns the route strategy for route-mode devices that have
// waypoints and the step strategy for everything else.
func StrategyFor(device models.Device) Strategy {
	if device.IsRouteMode() && len(device.Actions.Route.Coordinates) > 0 {
		return RouteStrategy{}
	}
	return StepStrategy{}
}
