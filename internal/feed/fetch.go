// Package feed assembles the combined multi-agency snapshot: concurrent
// retrieval, in-memory serving state and static JSON output.
package feed

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/menlo-oaks/crimefeed/internal/config"
	"github.com/menlo-oaks/crimefeed/internal/model"
	"github.com/menlo-oaks/crimefeed/pkg/arcgis"
	"github.com/menlo-oaks/crimefeed/pkg/citizenrims"
)

// Fetcher retrieves records from every configured source in parallel.
type Fetcher struct {
	rims          citizenrims.Client
	gis           arcgis.Client
	agencies      []config.AgencyConfig
	lookbackDays  int
	maxConcurrent int
	now           func() time.Time
}

// NewFetcher creates a Fetcher. The ArcGIS client may be nil when the Palo
// Alto source is disabled.
func NewFetcher(rims citizenrims.Client, gis arcgis.Client, cfg *config.Config) *Fetcher {
	return &Fetcher{
		rims:          rims,
		gis:           gis,
		agencies:      cfg.Agencies,
		lookbackDays:  cfg.Fetch.LookbackDays,
		maxConcurrent: cfg.Fetch.MaxConcurrent,
		now:           time.Now,
	}
}

// agencyResult holds one agency's records so output order stays stable
// regardless of which fetch finishes first.
type agencyResult struct {
	incidents []citizenrims.Incident
	cases     []citizenrims.Case
}

// FetchAll retrieves every configured source. Per-agency failures are
// logged and skipped so one dead portal cannot empty the whole feed.
func (f *Fetcher) FetchAll(ctx context.Context) *Snapshot {
	results := make([]agencyResult, len(f.agencies))
	var paloAlto []arcgis.Incident

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.maxConcurrent)

	for i, agency := range f.agencies {
		g.Go(func() error {
			log := zap.L().With(zap.String("agency", agency.Prefix))

			incidents, err := f.rims.Incidents(gctx, agency.Prefix)
			if err != nil {
				log.Warn("feed: incidents fetch failed", zap.Error(err))
			}
			cases, err := f.rims.Cases(gctx, agency.Prefix)
			if err != nil {
				log.Warn("feed: cases fetch failed", zap.Error(err))
			}

			results[i] = agencyResult{incidents: incidents, cases: cases}
			log.Debug("feed: agency fetched",
				zap.Int("incidents", len(incidents)),
				zap.Int("cases", len(cases)))
			return nil
		})
	}

	if f.gis != nil {
		g.Go(func() error {
			since := f.now().AddDate(0, 0, -f.lookbackDays)
			items, err := f.gis.Incidents(gctx, since)
			if err != nil {
				zap.L().Warn("feed: palo alto fetch failed", zap.Error(err))
				return nil
			}
			paloAlto = items
			return nil
		})
	}

	// Workers never return errors; they degrade to empty results.
	_ = g.Wait()

	snap := &Snapshot{}
	for _, r := range results {
		snap.Incidents = append(snap.Incidents, r.incidents...)
		snap.Cases = append(snap.Cases, r.cases...)
	}
	for _, in := range paloAlto {
		snap.Incidents = append(snap.Incidents, incidentFromArcGIS(in))
	}

	prefixes := make([]string, 0, len(f.agencies)+1)
	for _, a := range f.agencies {
		prefixes = append(prefixes, a.Prefix)
	}
	if f.gis != nil {
		prefixes = append(prefixes, paloAltoPrefix)
	}
	snap.Meta = model.FeedMeta{
		GeneratedAt:   f.now().UTC(),
		Days:          f.lookbackDays,
		Agencies:      prefixes,
		IncidentCount: len(snap.Incidents),
		CaseCount:     len(snap.Cases),
	}

	zap.L().Info("feed: snapshot assembled",
		zap.Int("incidents", snap.Meta.IncidentCount),
		zap.Int("cases", snap.Meta.CaseCount),
		zap.Strings("agencies", prefixes))
	return snap
}
