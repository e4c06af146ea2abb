package feed

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/menlo-oaks/crimefeed/internal/model"
	"github.com/menlo-oaks/crimefeed/pkg/citizenrims"
)

// Snapshot is one assembled view of all sources.
type Snapshot struct {
	Meta      model.FeedMeta         `json:"meta"`
	Incidents []citizenrims.Incident `json:"incidents"`
	Cases     []citizenrims.Case     `json:"cases"`
}

// Records converts the snapshot into classification records, incidents first.
func (s *Snapshot) Records() []model.CrimeRecord {
	out := make([]model.CrimeRecord, 0, len(s.Incidents)+len(s.Cases))
	for _, in := range s.Incidents {
		out = append(out, recordFromIncident(in))
	}
	for _, cs := range s.Cases {
		out = append(out, recordFromCase(cs))
	}
	return out
}

// FilterAgencies returns a copy limited to the given agency prefixes. Meta
// counts are recomputed; an empty prefix list returns the snapshot as is.
func (s *Snapshot) FilterAgencies(prefixes []string) *Snapshot {
	if len(prefixes) == 0 {
		return s
	}

	out := &Snapshot{Meta: s.Meta}
	for _, in := range s.Incidents {
		if slices.Contains(prefixes, in.Prefix) {
			out.Incidents = append(out.Incidents, in)
		}
	}
	for _, cs := range s.Cases {
		if slices.Contains(prefixes, cs.Prefix) {
			out.Cases = append(out.Cases, cs)
		}
	}
	out.Meta.IncidentCount = len(out.Incidents)
	out.Meta.CaseCount = len(out.Cases)
	return out
}

// Store holds the latest snapshot for serving and refreshes it in the
// background. Reads never block on a refresh in flight.
type Store struct {
	fetcher *Fetcher

	mu   sync.RWMutex
	snap *Snapshot
}

// NewStore creates a Store around a fetcher.
func NewStore(fetcher *Fetcher) *Store {
	return &Store{fetcher: fetcher, snap: &Snapshot{}}
}

// Current returns the latest snapshot. Never nil.
func (s *Store) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Refresh fetches a new snapshot and swaps it in.
func (s *Store) Refresh(ctx context.Context) {
	snap := s.fetcher.FetchAll(ctx)
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// Run refreshes immediately, then on the given interval until the context
// is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	s.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			zap.L().Info("feed: refresh loop stopped")
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}
