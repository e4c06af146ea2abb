// Package notify delivers alerts over webhook or email. Both notifiers
// implement alert.Notifier; delivery failure is returned, never raised.
package notify

import (
	"fmt"
	"regexp"

	"github.com/menlo-oaks/crimefeed/internal/model"
)

const metersPerMile = 1609.34

// Severity buckets for display. High-severity patterns are the crimes
// worth waking someone for; everything else alertable is Medium.
var highSeverityRe = regexp.MustCompile(`(?i)burglary|stolen vehicle|arson`)

// Severity returns "High" or "Medium" for an alertable record.
func Severity(rec model.CrimeRecord) string {
	if highSeverityRe.MatchString(rec.Text()) {
		return "High"
	}
	return "Medium"
}

// Miles converts meters to statute miles.
func Miles(meters float64) float64 {
	return meters / metersPerMile
}

// locationLine formats "street, city" with either part optional.
func locationLine(rec model.CrimeRecord) string {
	street := rec.Street
	if street == "" {
		street = "Unknown location"
	}
	if rec.City == "" {
		return street
	}
	return fmt.Sprintf("%s, %s", street, rec.City)
}

// shortLocation returns the shortest useful location for a subject line.
func shortLocation(rec model.CrimeRecord) string {
	if rec.Street != "" {
		return rec.Street
	}
	if rec.City != "" {
		return rec.City
	}
	return "Unknown"
}

// Subject builds the notification subject line.
func Subject(rec model.CrimeRecord, distanceMeters float64, areaName string) string {
	return fmt.Sprintf("%s near %s — %.1fmi from %s (%s)",
		rec.Headline(), shortLocation(rec), Miles(distanceMeters), areaName, Severity(rec))
}
