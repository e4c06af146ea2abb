package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/menlo-oaks/crimefeed/internal/classify"
	"github.com/menlo-oaks/crimefeed/internal/model"
)

// WebhookNotifier posts one JSON payload per alert to a configured URL.
type WebhookNotifier struct {
	url      string
	areaName string
	client   *http.Client
}

// NewWebhook creates a WebhookNotifier.
func NewWebhook(url, areaName string) *WebhookNotifier {
	return &WebhookNotifier{
		url:      url,
		areaName: areaName,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// webhookPayload is the wire shape of one alert.
type webhookPayload struct {
	RecordID       string     `json:"record_id"`
	Category       string     `json:"category"`
	Severity       string     `json:"severity"`
	Headline       string     `json:"headline"`
	Location       string     `json:"location"`
	Agency         string     `json:"agency,omitempty"`
	DistanceMeters float64    `json:"distance_meters"`
	DistanceMiles  float64    `json:"distance_miles"`
	ReferenceArea  string     `json:"reference_area"`
	OccurredAt     *time.Time `json:"occurred_at,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}

// Notify posts the alert. Any status >= 400 is a delivery failure.
func (n *WebhookNotifier) Notify(ctx context.Context, rec model.CrimeRecord, distanceMeters float64, cat classify.Category) error {
	payload, err := json.Marshal(webhookPayload{
		RecordID:       rec.ID(),
		Category:       string(cat),
		Severity:       Severity(rec),
		Headline:       rec.Headline(),
		Location:       locationLine(rec),
		Agency:         rec.AgencyName,
		DistanceMeters: distanceMeters,
		DistanceMiles:  Miles(distanceMeters),
		ReferenceArea:  n.areaName,
		OccurredAt:     rec.OccurredAt,
		Timestamp:      time.Now().UTC(),
	})
	if err != nil {
		return eris.Wrap(err, "notify: marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
