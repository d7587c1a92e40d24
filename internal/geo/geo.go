// Package geo provides best-effort city lookup from the caller's network
// origin.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultBaseURL is the ipinfo.io endpoint.
const DefaultBaseURL = "https://ipinfo.io"

// ErrNotFound is returned when no city could be determined.
var ErrNotFound = errors.New("geo: location not found")

// Locator resolves a city name.
type Locator interface {
	// City returns the city for ip, or for the server's own origin when ip
	// is empty.
	City(ctx context.Context, ip string) (string, error)
}

// IPInfo is the ipinfo.io Locator.
type IPInfo struct {
	baseURL    string
	httpClient *http.Client
}

// NewIPInfo creates an ipinfo.io locator.
func NewIPInfo(baseURL string, timeout time.Duration) *IPInfo {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &IPInfo{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type ipinfoResponse struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
	Bogon   bool   `json:"bogon"`
}

// City implements Locator. Private and loopback addresses are looked up as
// the server's own origin.
func (l *IPInfo) City(ctx context.Context, ip string) (string, error) {
	endpoint := l.baseURL + "/json"
	if addr := net.ParseIP(ip); addr != nil && !addr.IsLoopback() && !addr.IsPrivate() {
		endpoint = l.baseURL + "/" + addr.String() + "/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("City: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("City: %w: %v", ErrNotFound, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("City: %w: status %d", ErrNotFound, resp.StatusCode)
	}

	var parsed ipinfoResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&parsed); err != nil {
		return "", fmt.Errorf("City: decode: %w: %v", ErrNotFound, err)
	}

	city := ASCII(parsed.City)
	if city == "" || parsed.Bogon {
		return "", ErrNotFound
	}
	return city, nil
}

// ASCII decomposes s and drops everything that is not ASCII, so
// "Hyderābād" becomes "Hyderabad".
func ASCII(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	out, _, err := transform.String(t, s)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

var _ Locator = (*IPInfo)(nil)
