package alert

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/menlo-oaks/crimefeed/internal/classify"
	"github.com/menlo-oaks/crimefeed/internal/dedup"
	"github.com/menlo-oaks/crimefeed/internal/geofence"
	"github.com/menlo-oaks/crimefeed/internal/model"
)

// Notifier delivers one alert. Implementations report delivery failure
// through the returned error and must not panic; a failed record is
// retried on the next pass.
type Notifier interface {
	Notify(ctx context.Context, rec model.CrimeRecord, distanceMeters float64, cat classify.Category) error
}

// RunResult summarizes one alert pass.
type RunResult struct {
	// Notified holds the record IDs that produced a notification this
	// run, in processing order.
	Notified []string `json:"notified"`
	// Suppressed counts records that terminated without a notification:
	// non-alertable category, missing location, outside the tier radius,
	// or already alerted.
	Suppressed int `json:"suppressed"`
	// Failed counts records whose notification delivery failed. They are
	// not recorded as alerted and will be retried on the next pass.
	Failed int `json:"failed"`
}

// Pipeline runs the classify → geofence → tier → dedup → notify chain
// over a batch of records.
type Pipeline struct {
	classifier *classify.Classifier
	policy     RadiusPolicy
	notifier   Notifier
	history    dedup.History
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHistory makes the pipeline record each sent notification.
func WithHistory(h dedup.History) Option {
	return func(p *Pipeline) {
		p.history = h
	}
}

// NewPipeline creates a Pipeline.
func NewPipeline(classifier *classify.Classifier, policy RadiusPolicy, notifier Notifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		classifier: classifier,
		policy:     policy,
		notifier:   notifier,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes records strictly in input order. IDs added to the dedup
// store during the run are visible to later records, so a batch
// containing the same logical event twice notifies once.
//
// The dedup store is persisted once at the end. A persist failure is
// returned together with the completed RunResult: notifications already
// sent are not rolled back, so idempotency across a persist failure is
// best-effort rather than transactional.
func (p *Pipeline) Run(ctx context.Context, records []model.CrimeRecord, area *geofence.ReferenceArea, store dedup.Store) (*RunResult, error) {
	log := zap.L().With(zap.String("area", area.Name))
	result := &RunResult{}

	for _, rec := range records {
		id := rec.ID()
		cat := p.classifier.Classify(rec.Text())

		maxDist, alertable := p.policy.MaxDistance(cat)
		if !alertable {
			result.Suppressed++
			continue
		}

		// No position fix means no alert, never an error.
		if rec.Location == nil {
			log.Debug("alert: record has no location, suppressing",
				zap.String("record_id", id),
				zap.String("category", string(cat)),
			)
			result.Suppressed++
			continue
		}

		dist := area.Distance(rec.Location.Lat, rec.Location.Lng)
		if dist > maxDist {
			result.Suppressed++
			continue
		}

		if store.Contains(id) {
			result.Suppressed++
			continue
		}

		if err := p.notifier.Notify(ctx, rec, dist, cat); err != nil {
			log.Warn("alert: notification failed, will retry next pass",
				zap.String("record_id", id),
				zap.String("category", string(cat)),
				zap.Error(err),
			)
			result.Failed++
			continue
		}

		store.Add(id)
		result.Notified = append(result.Notified, id)
		log.Info("alert: notified",
			zap.String("record_id", id),
			zap.String("category", string(cat)),
			zap.Float64("distance_m", dist),
		)

		if p.history != nil {
			entry := dedup.Entry{
				RecordID:       id,
				Category:       string(cat),
				DistanceMeters: dist,
				Agency:         rec.AgencyPrefix,
				Headline:       rec.Headline(),
				NotifiedAt:     time.Now().UTC(),
			}
			if err := p.history.AppendHistory(ctx, entry); err != nil {
				log.Warn("alert: failed to record history", zap.String("record_id", id), zap.Error(err))
			}
		}
	}

	if err := store.Persist(ctx); err != nil {
		return result, eris.Wrap(err, "alert: persist dedup state")
	}
	return result, nil
}
