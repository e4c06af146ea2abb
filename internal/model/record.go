// Package model defines the shared data types for the crime feed pipeline.
package model

import (
	"fmt"
	"strings"
	"time"
)

// SourceKind identifies which upstream feed a record came from.
type SourceKind string

const (
	SourceIncident SourceKind = "incident"
	SourceCase     SourceKind = "case"
)

// idPrefix returns the short prefix used in record IDs. Kept as "inc"/"case"
// for compatibility with dedup state written by earlier deployments.
func (s SourceKind) idPrefix() string {
	if s == SourceIncident {
		return "inc"
	}
	return "case"
}

// Location is a WGS84 point. Records without geometry carry a nil *Location.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// CrimeRecord is one incident or case entry from an agency feed.
//
// TextFields is the ordered list of free-text attributes used for
// classification: call type, call type description, crime type, crime
// classification, offense description. Empty entries are permitted and
// skipped when building the matching buffer.
type CrimeRecord struct {
	Source       SourceKind `json:"source"`
	AgencyPrefix string     `json:"agency_prefix"`
	AgencyName   string     `json:"agency_name,omitempty"`
	RecordNumber string     `json:"record_number"`
	TextFields   []string   `json:"text_fields"`
	Location     *Location  `json:"location,omitempty"`

	Street     string     `json:"street,omitempty"`
	City       string     `json:"city,omitempty"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
}

// ID returns the deterministic dedup key for the record. It is a pure
// function of (source, agency prefix, record number), so the same
// real-world event always maps to the same ID across runs.
func (r CrimeRecord) ID() string {
	return fmt.Sprintf("%s-%s-%s", r.Source.idPrefix(), r.AgencyPrefix, r.RecordNumber)
}

// Text returns the classification buffer: all non-empty text fields joined
// with single spaces, order preserved.
func (r CrimeRecord) Text() string {
	parts := make([]string, 0, len(r.TextFields))
	for _, f := range r.TextFields {
		if f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " ")
}

// Headline returns the most descriptive single text field for display in
// notifications, falling back to a generic label.
func (r CrimeRecord) Headline() string {
	for _, f := range r.TextFields {
		if f != "" {
			return f
		}
	}
	return "Property Crime"
}

// FeedMeta describes one generated feed snapshot.
type FeedMeta struct {
	GeneratedAt   time.Time `json:"generated_at"`
	Days          int       `json:"days"`
	Agencies      []string  `json:"agencies"`
	IncidentCount int       `json:"incident_count"`
	CaseCount     int       `json:"case_count"`
}
