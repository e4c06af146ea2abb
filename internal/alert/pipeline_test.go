package alert

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menlo-oaks/crimefeed/internal/classify"
	"github.com/menlo-oaks/crimefeed/internal/dedup"
	"github.com/menlo-oaks/crimefeed/internal/geofence"
	"github.com/menlo-oaks/crimefeed/internal/model"
)

const (
	refLat = 37.448
	refLng = -122.177

	// Degrees of latitude per meter at the mean Earth radius.
	degPerMeter = 1.0 / 111195.0
)

type notifyCall struct {
	recordID string
	distance float64
	category classify.Category
}

// fakeNotifier records calls and can fail specific record IDs.
type fakeNotifier struct {
	calls   []notifyCall
	failIDs map[string]bool
}

func (f *fakeNotifier) Notify(_ context.Context, rec model.CrimeRecord, dist float64, cat classify.Category) error {
	if f.failIDs[rec.ID()] {
		return assert.AnError
	}
	f.calls = append(f.calls, notifyCall{recordID: rec.ID(), distance: dist, category: cat})
	return nil
}

// failingPersistStore wraps a FileStore but always fails Persist.
type failingPersistStore struct {
	*dedup.FileStore
}

func (s *failingPersistStore) Persist(ctx context.Context) error {
	return assert.AnError
}

func makeCase(number, offense string, metersNorth float64) model.CrimeRecord {
	return model.CrimeRecord{
		Source:       model.SourceCase,
		AgencyPrefix: "menlopark",
		RecordNumber: number,
		TextFields:   []string{"", "", "Burglary", "", offense},
		Location:     &model.Location{Lat: refLat + metersNorth*degPerMeter, Lng: refLng},
	}
}

func makeIncident(number, callType string, metersNorth float64) model.CrimeRecord {
	return model.CrimeRecord{
		Source:       model.SourceIncident,
		AgencyPrefix: "menlopark",
		RecordNumber: number,
		TextFields:   []string{callType, "Suspicious Circumstances", "", "", ""},
		Location:     &model.Location{Lat: refLat + metersNorth*degPerMeter, Lng: refLng},
	}
}

func newTestStore(t *testing.T) dedup.Store {
	t.Helper()
	s := dedup.NewFile(filepath.Join(t.TempDir(), "alerted.json"))
	require.NoError(t, s.Load(context.Background()))
	return s
}

func newTestPipeline(n Notifier) *Pipeline {
	return NewPipeline(classify.Default(), DefaultPolicy(), n)
}

func TestRun_Scenarios(t *testing.T) {
	tests := []struct {
		name         string
		record       model.CrimeRecord
		wantNotified bool
	}{
		{
			name:         "residential burglary at reference area",
			record:       makeCase("26-001", "Burglary - Residential (F)", 0),
			wantNotified: true,
		},
		{
			name:         "residential burglary at 6km exceeds 3mi tier",
			record:       makeCase("26-002", "Burglary - Residential (F)", 6000),
			wantNotified: false,
		},
		{
			name:         "suspicious person at 160m within quarter mile",
			record:       makeIncident("202601010001", "Suspicious Person", 160),
			wantNotified: true,
		},
		{
			name:         "suspicious person at 800m exceeds quarter mile",
			record:       makeIncident("202601010002", "Suspicious Person", 800),
			wantNotified: false,
		},
		{
			name:         "shoplift excluded regardless of distance",
			record:       makeCase("26-003", "Shoplift (M)", 0),
			wantNotified: false,
		},
		{
			name:         "burglary at 2mi within property tier",
			record:       makeCase("26-004", "Burglary - Vehicle (F)", 3200),
			wantNotified: true,
		},
	}

	area := geofence.NewPointArea("menlo-oaks", refLat, refLng)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &fakeNotifier{}
			result, err := newTestPipeline(notifier).Run(context.Background(), []model.CrimeRecord{tt.record}, area, newTestStore(t))
			require.NoError(t, err)

			if tt.wantNotified {
				require.Len(t, result.Notified, 1)
				assert.Equal(t, tt.record.ID(), result.Notified[0])
				assert.Equal(t, 0, result.Suppressed)
				require.Len(t, notifier.calls, 1)
			} else {
				assert.Empty(t, result.Notified)
				assert.Equal(t, 1, result.Suppressed)
				assert.Empty(t, notifier.calls)
			}
		})
	}
}

func TestRun_MissingLocationAlwaysSuppressed(t *testing.T) {
	rec := makeCase("26-010", "Burglary - Residential (F)", 0)
	rec.Location = nil

	notifier := &fakeNotifier{}
	area := geofence.NewPointArea("menlo-oaks", refLat, refLng)
	result, err := newTestPipeline(notifier).Run(context.Background(), []model.CrimeRecord{rec}, area, newTestStore(t))
	require.NoError(t, err)

	assert.Empty(t, result.Notified)
	assert.Equal(t, 1, result.Suppressed)
	assert.Empty(t, notifier.calls, "a record without a position fix must never notify")
}

func TestRun_IdempotentAcrossRuns(t *testing.T) {
	ctx := context.Background()
	rec := makeCase("26-020", "Burglary - Residential (F)", 0)
	area := geofence.NewPointArea("menlo-oaks", refLat, refLng)
	store := newTestStore(t)

	notifier := &fakeNotifier{}
	p := newTestPipeline(notifier)

	first, err := p.Run(ctx, []model.CrimeRecord{rec}, area, store)
	require.NoError(t, err)
	require.Len(t, first.Notified, 1)

	second, err := p.Run(ctx, []model.CrimeRecord{rec}, area, store)
	require.NoError(t, err)
	assert.Empty(t, second.Notified)
	assert.Equal(t, 1, second.Suppressed)

	assert.Len(t, notifier.calls, 1, "at most one notification across both runs")
}

func TestRun_DuplicateWithinBatchNotifiesOnce(t *testing.T) {
	rec := makeCase("26-030", "Grand Theft (F)", 100)

	notifier := &fakeNotifier{}
	area := geofence.NewPointArea("menlo-oaks", refLat, refLng)
	result, err := newTestPipeline(notifier).Run(context.Background(), []model.CrimeRecord{rec, rec}, area, newTestStore(t))
	require.NoError(t, err)

	assert.Len(t, result.Notified, 1)
	assert.Equal(t, 1, result.Suppressed)
	assert.Len(t, notifier.calls, 1)
}

func TestRun_NotifierFailureRetriedNextPass(t *testing.T) {
	ctx := context.Background()
	failing := makeCase("26-040", "Burglary - Residential (F)", 0)
	healthy := makeCase("26-041", "Vandalism (M)", 500)
	area := geofence.NewPointArea("menlo-oaks", refLat, refLng)
	store := newTestStore(t)

	notifier := &fakeNotifier{failIDs: map[string]bool{failing.ID(): true}}
	p := newTestPipeline(notifier)

	result, err := p.Run(ctx, []model.CrimeRecord{failing, healthy}, area, store)
	require.NoError(t, err, "one delivery failure must not abort the batch")
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{healthy.ID()}, result.Notified)
	assert.False(t, store.Contains(failing.ID()), "failed record must not be marked alerted")

	// Next pass delivers the previously failed record.
	notifier.failIDs = nil
	retry, err := p.Run(ctx, []model.CrimeRecord{failing, healthy}, area, store)
	require.NoError(t, err)
	assert.Equal(t, []string{failing.ID()}, retry.Notified)
}

func TestRun_PersistFailureSurfacedWithResult(t *testing.T) {
	rec := makeCase("26-050", "Burglary - Residential (F)", 0)
	area := geofence.NewPointArea("menlo-oaks", refLat, refLng)

	inner := dedup.NewFile(filepath.Join(t.TempDir(), "alerted.json"))
	require.NoError(t, inner.Load(context.Background()))
	store := &failingPersistStore{FileStore: inner}

	notifier := &fakeNotifier{}
	result, err := newTestPipeline(notifier).Run(context.Background(), []model.CrimeRecord{rec}, area, store)

	require.Error(t, err)
	require.NotNil(t, result)
	assert.Len(t, result.Notified, 1, "sent notifications are not rolled back on persist failure")
}

func TestRun_RecordsHistory(t *testing.T) {
	ctx := context.Background()
	rec := makeIncident("202601010009", "Prowler", 100)
	area := geofence.NewPointArea("menlo-oaks", refLat, refLng)

	hist := &fakeHistory{}
	p := NewPipeline(classify.Default(), DefaultPolicy(), &fakeNotifier{}, WithHistory(hist))

	_, err := p.Run(ctx, []model.CrimeRecord{rec}, area, newTestStore(t))
	require.NoError(t, err)

	require.Len(t, hist.entries, 1)
	assert.Equal(t, rec.ID(), hist.entries[0].RecordID)
	assert.Equal(t, string(classify.SuspiciousActivity), hist.entries[0].Category)
	assert.Equal(t, "Prowler", hist.entries[0].Headline)
}

type fakeHistory struct {
	entries []dedup.Entry
}

func (f *fakeHistory) AppendHistory(_ context.Context, e dedup.Entry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeHistory) ListHistory(_ context.Context, limit int) ([]dedup.Entry, error) {
	return f.entries, nil
}
