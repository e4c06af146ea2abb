// Package citizenrims provides a client for the CitizenRIMS citizen portal API.
package citizenrims

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/menlo-oaks/crimefeed/internal/resilience"
)

// DefaultBaseURL is the production CitizenRIMS API endpoint.
const DefaultBaseURL = "https://api.v1.citizenrims.com"

// Client defines the CitizenRIMS read operations.
type Client interface {
	// AgencyConfig resolves an agency's configuration by its URL prefix.
	AgencyConfig(ctx context.Context, prefix string) (*AgencyConfig, error)
	// Incidents fetches recent incidents for one agency.
	Incidents(ctx context.Context, prefix string) ([]Incident, error)
	// Cases fetches recent cases for one agency.
	Cases(ctx context.Context, prefix string) ([]Case, error)
}

// AgencyConfig is the per-agency portal configuration.
type AgencyConfig struct {
	AgencyID             int           `json:"agencyId"`
	PrimaryAgencyID      int           `json:"primaryAgencyId"`
	AgencySiteName       string        `json:"agencySiteName"`
	IncidentsEnabled     bool          `json:"incidentsEnabled"`
	CaseDataEnabled      bool          `json:"caseDataEnabled"`
	DefaultLatitude      float64       `json:"defaultLatitude"`
	DefaultLongitude     float64       `json:"defaultLongitude"`
	IncidentMarkerGroups []MarkerGroup `json:"incidentMarkerGroups"`
	CaseMarkerGroups     []MarkerGroup `json:"caseMarkerGroups"`
}

// MarkerGroup names one record type the portal exposes.
type MarkerGroup struct {
	GroupFieldName string `json:"groupFieldName"`
}

// Incident is one call-for-service record.
type Incident struct {
	IncidentNumber         string   `json:"incidentNumber"`
	Street                 string   `json:"street"`
	City                   string   `json:"city"`
	Status                 string   `json:"status"`
	IncidentDate           string   `json:"incidentDate"`
	IncidentTime           string   `json:"incidentTime"`
	XCoord                 *float64 `json:"xCoord"`
	YCoord                 *float64 `json:"yCoord"`
	CallType               string   `json:"callType"`
	CallTypeDescription    string   `json:"callTypeDescription"`
	CallSubtype            string   `json:"callSubtype"`
	CallSubtypeDescription string   `json:"callSubtypeDescription"`
	Source                 string   `json:"_source"`
	Agency                 string   `json:"_agency"`
	Prefix                 string   `json:"_prefix"`
}

// Case is one filed case record.
type Case struct {
	CaseNumber          string   `json:"caseNumber"`
	Street              string   `json:"street"`
	City                string   `json:"city"`
	CrimeType           string   `json:"crimeType"`
	CrimeClassification string   `json:"crimeClassification"`
	OffenseDescription1 string   `json:"offenseDescription1"`
	ReportDate          string   `json:"reportDate"`
	Occurrence1Date     string   `json:"occurrence1Date"`
	XCoord              *float64 `json:"xCoord"`
	YCoord              *float64 `json:"yCoord"`
	Source              string   `json:"_source"`
	Agency              string   `json:"_agency"`
	Prefix              string   `json:"_prefix"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
		c.tokens = NewTokenManager(c.baseURL, c.http)
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
		c.tokens = NewTokenManager(c.baseURL, hc)
	}
}

// WithRateLimit sets the requests-per-second limit for API calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithLookback sets how many days of records to fetch.
func WithLookback(days int) Option {
	return func(c *httpClient) {
		c.lookbackDays = days
	}
}

// WithSearchRadius sets the geographic search radius in meters.
func WithSearchRadius(meters float64) Option {
	return func(c *httpClient) {
		c.radiusM = meters
	}
}

type httpClient struct {
	baseURL      string
	http         *http.Client
	tokens       *TokenManager
	limiter      *rate.Limiter
	lookbackDays int
	radiusM      float64
	now          func() time.Time

	mu      sync.Mutex
	configs map[string]*AgencyConfig
}

// NewClient creates a CitizenRIMS client.
func NewClient(opts ...Option) Client {
	hc := &http.Client{Timeout: 30 * time.Second}
	c := &httpClient{
		baseURL:      DefaultBaseURL,
		http:         hc,
		tokens:       NewTokenManager(DefaultBaseURL, hc),
		limiter:      rate.NewLimiter(2, 1),
		lookbackDays: 7,
		radiusM:      50000,
		now:          time.Now,
		configs:      make(map[string]*AgencyConfig),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AgencyConfig resolves and caches the agency configuration for a prefix.
func (c *httpClient) AgencyConfig(ctx context.Context, prefix string) (*AgencyConfig, error) {
	c.mu.Lock()
	cached, ok := c.configs[prefix]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	var cfg AgencyConfig
	params := url.Values{"citizenRimsUrlPrefix": {prefix}}
	if err := c.get(ctx, "/api/v1/AgencyConfig/AgencyConfigGetByUrlPrefix", params, &cfg); err != nil {
		return nil, eris.Wrapf(err, "citizenrims: agency config %s", prefix)
	}

	c.mu.Lock()
	c.configs[prefix] = &cfg
	c.mu.Unlock()
	return &cfg, nil
}

// Incidents fetches recent incidents for one agency. Agencies with the
// incident feed disabled return an empty slice without error.
func (c *httpClient) Incidents(ctx context.Context, prefix string) ([]Incident, error) {
	cfg, err := c.AgencyConfig(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if !cfg.IncidentsEnabled || len(cfg.IncidentMarkerGroups) == 0 {
		return nil, nil
	}

	var items []Incident
	if err := c.get(ctx, "/api/v1/Incident", c.queryParams(cfg, cfg.IncidentMarkerGroups), &items); err != nil {
		return nil, eris.Wrapf(err, "citizenrims: incidents %s", prefix)
	}
	for i := range items {
		items[i].Source = "incident"
		items[i].Agency = agencyName(cfg, prefix)
		items[i].Prefix = prefix
	}
	return items, nil
}

// Cases fetches recent cases for one agency. Agencies with case data
// disabled return an empty slice without error.
func (c *httpClient) Cases(ctx context.Context, prefix string) ([]Case, error) {
	cfg, err := c.AgencyConfig(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if !cfg.CaseDataEnabled || len(cfg.CaseMarkerGroups) == 0 {
		return nil, nil
	}

	var items []Case
	if err := c.get(ctx, "/api/v1/Case", c.queryParams(cfg, cfg.CaseMarkerGroups), &items); err != nil {
		return nil, eris.Wrapf(err, "citizenrims: cases %s", prefix)
	}
	for i := range items {
		items[i].Source = "case"
		items[i].Agency = agencyName(cfg, prefix)
		items[i].Prefix = prefix
	}
	return items, nil
}

func agencyName(cfg *AgencyConfig, prefix string) string {
	if cfg.AgencySiteName != "" {
		return cfg.AgencySiteName
	}
	return prefix
}

// queryParams builds the record query for one agency.
func (c *httpClient) queryParams(cfg *AgencyConfig, groups []MarkerGroup) url.Values {
	end := c.now()
	start := end.AddDate(0, 0, -c.lookbackDays)

	types := make([]string, 0, len(groups))
	for _, g := range groups {
		types = append(types, g.GroupFieldName)
	}

	lat, lng := cfg.DefaultLatitude, cfg.DefaultLongitude
	if lat == 0 && lng == 0 {
		lat, lng = 37.5, -122.2
	}

	return url.Values{
		"agencyId":        {fmt.Sprintf("%d", cfg.AgencyID)},
		"primaryAgencyId": {fmt.Sprintf("%d", cfg.PrimaryAgencyID)},
		"startDate":       {dateString(start)},
		"endDate":         {dateString(end)},
		"types":           {strings.Join(types, ",")},
		"circleLatitude":  {fmt.Sprintf("%g", lat)},
		"circleLongitude": {fmt.Sprintf("%g", lng)},
		"circleRadius":    {fmt.Sprintf("%g", c.radiusM)},
	}
}

// dateString formats a time the way the API expects, matching JavaScript's
// Date.prototype.toDateString: "Thu Jan 29 2026".
func dateString(t time.Time) string {
	return t.Format("Mon Jan 02 2006")
}

func (c *httpClient) get(ctx context.Context, path string, params url.Values, out any) error {
	return resilience.Do(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) error {
		return c.getOnce(ctx, path, params, out)
	})
}

func (c *httpClient) getOnce(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "citizenrims: rate limit wait")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "citizenrims: create request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "citizenrims: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := eris.Errorf("citizenrims: %s returned status %d: %s", path, resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrap(err, "citizenrims: decode response")
	}
	return nil
}
