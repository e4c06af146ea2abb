// Package alert decides which records produce a notification and sends
// at most one per record through the configured Notifier.
package alert

import (
	"github.com/menlo-oaks/crimefeed/internal/classify"
)

// Default tier radii in meters.
const (
	// ThreeMilesM is the radius for confirmed property-loss crimes.
	ThreeMilesM = 4828
	// QuarterMileM is the radius for suspicious-activity reports, which
	// run an order of magnitude more frequent and far less conclusive
	// than confirmed property crimes. The tight radius keeps volume down
	// to genuinely nearby, actionable events.
	QuarterMileM = 402
)

// RadiusPolicy maps an alertable category to its maximum qualifying
// distance from the reference area.
type RadiusPolicy struct {
	PropertyCrimeM      float64
	SuspiciousActivityM float64
}

// DefaultPolicy returns the standard 3 mi / 0.25 mi tiers.
func DefaultPolicy() RadiusPolicy {
	return RadiusPolicy{
		PropertyCrimeM:      ThreeMilesM,
		SuspiciousActivityM: QuarterMileM,
	}
}

// MaxDistance returns the tier radius for the category. The second return
// is false for categories that never alert (Excluded, NotAlertable),
// which the pipeline short-circuits before any geofence work.
func (p RadiusPolicy) MaxDistance(cat classify.Category) (float64, bool) {
	switch cat {
	case classify.PropertyCrime:
		return p.PropertyCrimeM, true
	case classify.SuspiciousActivity:
		return p.SuspiciousActivityM, true
	default:
		return 0, false
	}
}
