// Package arcgis provides a read-only client for ArcGIS REST feature query
// endpoints, shaped around the Palo Alto police calls MapServer layer.
package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/menlo-oaks/crimefeed/internal/resilience"
)

// DefaultBaseURL is the Palo Alto police calls layer.
const DefaultBaseURL = "https://gis.cityofpaloalto.org/server/rest/services/PublicSafety/AgencyCommonEvent/MapServer/2"

// Client defines the feature query operations.
type Client interface {
	// Incidents fetches all calls since the given time, following pagination.
	Incidents(ctx context.Context, since time.Time) ([]Incident, error)
}

// Incident is one normalized police call.
type Incident struct {
	IncidentNumber         string
	CrossStreet            string
	Status                 string
	CallType               string
	CallTypeDescription    string
	CallSubtype            string
	CallSubtypeDescription string
	CallTime               *time.Time
	Lat                    *float64
	Lng                    *float64
}

// queryResponse is the raw feature query payload.
type queryResponse struct {
	Features              []feature `json:"features"`
	ExceededTransferLimit bool      `json:"exceededTransferLimit"`
	Error                 *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type feature struct {
	Attributes struct {
		IncidentNumber         string `json:"INCIDENTNUMBER"`
		CrossStreet            string `json:"CROSSSTREET"`
		IncidentStatus         string `json:"INCIDENTSTATUS"`
		CallType               string `json:"CALLTYPE"`
		CallTypeDescription    string `json:"CALLTYPEDESCRIPTION"`
		CallSubtype            string `json:"CALLSUBTYPE"`
		CallSubtypeDescription string `json:"CALLSUBTYPEDESCRIPTION"`
		CallTime               *int64 `json:"CALLTIME"`
	} `json:"attributes"`
	Geometry struct {
		Rings [][][2]float64 `json:"rings"`
	} `json:"geometry"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom layer URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithPageSize sets the per-request record count.
func WithPageSize(n int) Option {
	return func(c *httpClient) {
		c.pageSize = n
	}
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	baseURL  string
	http     *http.Client
	pageSize int
	limiter  *rate.Limiter
}

// NewClient creates an ArcGIS feature query client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:  DefaultBaseURL,
		http:     &http.Client{Timeout: 60 * time.Second},
		pageSize: 1000,
		limiter:  rate.NewLimiter(2, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Incidents fetches all calls since the given time, following pagination
// until the server stops reporting a truncated result set.
func (c *httpClient) Incidents(ctx context.Context, since time.Time) ([]Incident, error) {
	where := fmt.Sprintf("CALLTIME >= TIMESTAMP '%s'", since.Format("2006-01-02 15:04:05"))

	var out []Incident
	offset := 0
	for {
		page, err := c.queryPage(ctx, where, offset)
		if err != nil {
			return nil, err
		}
		for _, f := range page.Features {
			out = append(out, normalize(f))
		}
		if !page.ExceededTransferLimit || len(page.Features) < c.pageSize {
			return out, nil
		}
		offset += len(page.Features)
	}
}

func (c *httpClient) queryPage(ctx context.Context, where string, offset int) (*queryResponse, error) {
	var page *queryResponse
	err := resilience.Do(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) error {
		var err error
		page, err = c.queryPageOnce(ctx, where, offset)
		return err
	})
	return page, err
}

func (c *httpClient) queryPageOnce(ctx context.Context, where string, offset int) (*queryResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "arcgis: rate limit wait")
	}

	params := url.Values{
		"where":             {where},
		"outFields":         {"*"},
		"f":                 {"json"},
		"resultRecordCount": {fmt.Sprintf("%d", c.pageSize)},
		"resultOffset":      {fmt.Sprintf("%d", offset)},
		"returnGeometry":    {"true"},
		"outSR":             {"4326"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/query?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: query request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := eris.Errorf("arcgis: query returned status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var page queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, eris.Wrap(err, "arcgis: decode response")
	}
	// Layer errors come back with HTTP 200 and an error body.
	if page.Error != nil {
		return nil, eris.Errorf("arcgis: query error %d: %s", page.Error.Code, page.Error.Message)
	}
	return &page, nil
}

// normalize flattens a feature into an Incident. The layer publishes call
// footprints as polygons; the position is the outer ring's centroid.
func normalize(f feature) Incident {
	inc := Incident{
		IncidentNumber:         f.Attributes.IncidentNumber,
		CrossStreet:            f.Attributes.CrossStreet,
		Status:                 f.Attributes.IncidentStatus,
		CallType:               f.Attributes.CallType,
		CallTypeDescription:    f.Attributes.CallTypeDescription,
		CallSubtype:            f.Attributes.CallSubtype,
		CallSubtypeDescription: f.Attributes.CallSubtypeDescription,
	}

	if f.Attributes.CallTime != nil {
		t := time.UnixMilli(*f.Attributes.CallTime).UTC()
		inc.CallTime = &t
	}

	if len(f.Geometry.Rings) > 0 && len(f.Geometry.Rings[0]) > 0 {
		ring := f.Geometry.Rings[0]
		var sx, sy float64
		for _, p := range ring {
			sx += p[0]
			sy += p[1]
		}
		lng := sx / float64(len(ring))
		lat := sy / float64(len(ring))
		inc.Lng = &lng
		inc.Lat = &lat
	}

	return inc
}
