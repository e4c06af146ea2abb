package feed

import (
	"time"

	"github.com/menlo-oaks/crimefeed/internal/model"
	"github.com/menlo-oaks/crimefeed/pkg/arcgis"
	"github.com/menlo-oaks/crimefeed/pkg/citizenrims"
)

// paloAltoPrefix labels records from the ArcGIS source. Palo Alto exists on
// CitizenRIMS as "papd" but has all data feeds disabled there.
const (
	paloAltoPrefix = "paloalto"
	paloAltoName   = "Palo Alto Police Department"
)

// recordFromIncident maps an incident onto the classification model.
func recordFromIncident(in citizenrims.Incident) model.CrimeRecord {
	rec := model.CrimeRecord{
		Source:       model.SourceIncident,
		AgencyPrefix: in.Prefix,
		AgencyName:   in.Agency,
		RecordNumber: in.IncidentNumber,
		TextFields:   []string{in.CallType, in.CallTypeDescription, "", "", ""},
		Street:       in.Street,
		City:         in.City,
		Location:     location(in.YCoord, in.XCoord),
		OccurredAt:   parseWhen(in.IncidentDate),
	}
	return rec
}

// recordFromCase maps a case onto the classification model.
func recordFromCase(cs citizenrims.Case) model.CrimeRecord {
	when := parseWhen(cs.ReportDate)
	if when == nil {
		when = parseWhen(cs.Occurrence1Date)
	}
	return model.CrimeRecord{
		Source:       model.SourceCase,
		AgencyPrefix: cs.Prefix,
		AgencyName:   cs.Agency,
		RecordNumber: cs.CaseNumber,
		TextFields:   []string{"", "", cs.CrimeType, cs.CrimeClassification, cs.OffenseDescription1},
		Street:       cs.Street,
		City:         cs.City,
		Location:     location(cs.YCoord, cs.XCoord),
		OccurredAt:   when,
	}
}

// incidentFromArcGIS normalizes a Palo Alto call into the shared incident
// shape so the feed carries one homogeneous incident array.
func incidentFromArcGIS(in arcgis.Incident) citizenrims.Incident {
	out := citizenrims.Incident{
		IncidentNumber:         in.IncidentNumber,
		Street:                 in.CrossStreet,
		City:                   "Palo Alto",
		Status:                 in.Status,
		CallType:               in.CallType,
		CallTypeDescription:    in.CallTypeDescription,
		CallSubtype:            in.CallSubtype,
		CallSubtypeDescription: in.CallSubtypeDescription,
		XCoord:                 in.Lng,
		YCoord:                 in.Lat,
		Source:                 "incident",
		Agency:                 paloAltoName,
		Prefix:                 paloAltoPrefix,
	}
	if in.CallTime != nil {
		out.IncidentDate = in.CallTime.UTC().Format(time.RFC3339)
		out.IncidentTime = in.CallTime.UTC().Format("15:04:05")
	}
	return out
}

func location(lat, lng *float64) *model.Location {
	if lat == nil || lng == nil {
		return nil
	}
	return &model.Location{Lat: *lat, Lng: *lng}
}

// parseWhen handles the timestamp formats the upstream feeds emit.
func parseWhen(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}
