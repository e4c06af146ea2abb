package citizenrims

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// Tokens are issued for 24h; refresh well before expiry.
const (
	tokenTTL    = time.Hour
	refreshSkew = time.Minute
)

// TokenManager caches the anonymous citizen bearer token and refreshes it
// before expiry. Safe for concurrent use.
type TokenManager struct {
	baseURL string
	http    *http.Client
	now     func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenManager creates a TokenManager against the given API base URL.
func NewTokenManager(baseURL string, hc *http.Client) *TokenManager {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenManager{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		now:     time.Now,
	}
}

// Token returns a valid bearer token, refreshing it when needed.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.now().Before(m.expiresAt.Add(-refreshSkew)) {
		return m.token, nil
	}

	token, err := m.refresh(ctx)
	if err != nil {
		return "", err
	}
	m.token = token
	m.expiresAt = m.now().Add(tokenTTL)
	return m.token, nil
}

func (m *TokenManager) refresh(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/api/v1/auth/citizen", strings.NewReader(""))
	if err != nil {
		return "", eris.Wrap(err, "citizenrims: create token request")
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "citizenrims: token request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("citizenrims: token endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", eris.Wrap(err, "citizenrims: decode token response")
	}
	if body.Token == "" {
		return "", eris.New("citizenrims: token endpoint returned empty token")
	}
	return body.Token, nil
}
