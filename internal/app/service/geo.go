package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// Location is a resolved city/country pair. Either field may be empty
// when the lookup degraded.
type Location struct {
	City    string
	Country string
}

// GeoResolver maps a client IP to a coarse location. Implementations must
// treat failure as degradation: return a zero Location and an error the
// caller counts but never propagates to the click write.
type GeoResolver interface {
	Resolve(ctx context.Context, ip string) (Location, error)
}

// NoopGeoResolver always reports unknown geography. Used in tests and
// when geo lookups are disabled by config.
type NoopGeoResolver struct{}

func (NoopGeoResolver) Resolve(context.Context, string) (Location, error) {
	return Location{}, nil
}

// HTTPGeoResolver queries an ip-api.com style JSON endpoint
// (GET {endpoint}/{ip}?fields=status,country,city). The timeout is short
// so a slow upstream cannot back up the ingest workers.
type HTTPGeoResolver struct {
	endpoint string
	client   *http.Client
}

// NewHTTPGeoResolver builds a resolver against the given endpoint.
func NewHTTPGeoResolver(endpoint string, timeout time.Duration) *HTTPGeoResolver {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPGeoResolver{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

type geoResponse struct {
	Status  string `json:"status"`
	Country string `json:"country"`
	City    string `json:"city"`
}

func (r *HTTPGeoResolver) Resolve(ctx context.Context, ip string) (Location, error) {
	if !resolvableIP(ip) {
		return Location{}, nil
	}

	url := fmt.Sprintf("%s/%s?fields=status,country,city", r.endpoint, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Location{}, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Location{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("geo lookup: status %d", resp.StatusCode)
	}

	var body geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, err
	}
	if body.Status != "success" {
		return Location{}, fmt.Errorf("geo lookup: status %q", body.Status)
	}

	return Location{City: body.City, Country: body.Country}, nil
}

// resolvableIP filters out addresses no public geo service can place:
// empty, loopback, unspecified and RFC1918/ULA ranges.
func resolvableIP(ip string) bool {
	if ip == "" {
		return false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	if parsed.IsLoopback() || parsed.IsUnspecified() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast() {
		return false
	}
	return true
}
