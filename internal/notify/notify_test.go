package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menlo-oaks/crimefeed/internal/classify"
	"github.com/menlo-oaks/crimefeed/internal/model"
)

func testRecord() model.CrimeRecord {
	return model.CrimeRecord{
		Source:       model.SourceCase,
		AgencyPrefix: "menlopark",
		AgencyName:   "Menlo Park Police Department",
		RecordNumber: "26-001",
		TextFields:   []string{"", "", "Burglary", "Felony", "Burglary - Residential (F)"},
		Street:       "100 TEST ST",
		City:         "Menlo Park",
		Location:     &model.Location{Lat: 37.448, Lng: -122.177},
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		name     string
		text     []string
		expected string
	}{
		{"burglary is high", []string{"Burglary - Residential (F)"}, "High"},
		{"stolen vehicle is high", []string{"Stolen Vehicle (F)"}, "High"},
		{"arson is high", []string{"Arson (F)"}, "High"},
		{"fraud is medium", []string{"Fraud (M)"}, "Medium"},
		{"vandalism is medium", []string{"Vandalism (M)"}, "Medium"},
		{"grand theft is medium", []string{"Grand Theft (F)"}, "Medium"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := model.CrimeRecord{TextFields: tt.text}
			assert.Equal(t, tt.expected, Severity(rec))
		})
	}
}

func TestSubject(t *testing.T) {
	subject := Subject(testRecord(), 1609.34, "Menlo Oaks")
	assert.Equal(t, "Burglary near 100 TEST ST — 1.0mi from Menlo Oaks (High)", subject)
}

func TestSubject_FallbackLocation(t *testing.T) {
	rec := testRecord()
	rec.Street = ""
	rec.City = ""
	subject := Subject(rec, 0, "Menlo Oaks")
	assert.Contains(t, subject, "near Unknown")
}

func TestWebhookNotify_Success(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhook(srv.URL, "Menlo Oaks")
	err := n.Notify(context.Background(), testRecord(), 1200, classify.PropertyCrime)
	require.NoError(t, err)

	assert.Equal(t, "case-menlopark-26-001", got.RecordID)
	assert.Equal(t, "property_crime", got.Category)
	assert.Equal(t, "High", got.Severity)
	assert.Equal(t, "100 TEST ST, Menlo Park", got.Location)
	assert.Equal(t, "Menlo Oaks", got.ReferenceArea)
	assert.InDelta(t, 1200, got.DistanceMeters, 0.001)
	assert.InDelta(t, 0.7456, got.DistanceMiles, 0.001)
}

func TestWebhookNotify_ServerErrorIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhook(srv.URL, "Menlo Oaks")
	err := n.Notify(context.Background(), testRecord(), 1200, classify.PropertyCrime)
	require.Error(t, err)
}

func TestWebhookNotify_UnreachableIsFailure(t *testing.T) {
	n := NewWebhook("http://127.0.0.1:1/nope", "Menlo Oaks")
	err := n.Notify(context.Background(), testRecord(), 1200, classify.PropertyCrime)
	require.Error(t, err)
}

func TestSMTPNotify_MissingCredentials(t *testing.T) {
	n := NewSMTP(SMTPConfig{Recipients: []string{"a@example.com"}}, "Menlo Oaks")
	err := n.Notify(context.Background(), testRecord(), 1200, classify.PropertyCrime)
	require.Error(t, err)
}

func TestSMTPNotify_MissingRecipients(t *testing.T) {
	n := NewSMTP(SMTPConfig{Username: "u", Password: "p"}, "Menlo Oaks")
	err := n.Notify(context.Background(), testRecord(), 1200, classify.PropertyCrime)
	require.Error(t, err)
}

func TestSMTPCompose(t *testing.T) {
	n := NewSMTP(SMTPConfig{
		Username:   "alerts@example.com",
		Password:   "secret",
		Recipients: []string{"one@example.com", "two@example.com"},
		MapURL:     "https://example.com/map",
	}, "Menlo Oaks")

	msg := n.compose(testRecord(), 1609.34)
	assert.Contains(t, msg, "Subject: Burglary near 100 TEST ST — 1.0mi from Menlo Oaks (High)")
	assert.Contains(t, msg, "To: one@example.com, two@example.com")
	assert.Contains(t, msg, "multipart/alternative")
	assert.Contains(t, msg, "text/plain")
	assert.Contains(t, msg, "text/html")
	assert.Contains(t, msg, "https://example.com/map")
	assert.Contains(t, msg, "100 TEST ST, Menlo Park")
}
