package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/httpclient"
	"github.com/phibia-app/phibia-go/internal/logger"
)

// maxLookupBody bounds the IP lookup response.
const maxLookupBody = 64 << 10

// IPProvider estimates the position from the public IP address.
// The lookup endpoint must answer in the ip-api.com JSON shape; the
// latitude/longitude spelling used by other services is accepted too.
type IPProvider struct {
	client *httpclient.Client
	url    string
}

// NewIPProvider returns a provider querying lookupURL with client.
func NewIPProvider(client *httpclient.Client, lookupURL string) *IPProvider {
	return &IPProvider{client: client, url: lookupURL}
}

// Name implements Provider.
func (p *IPProvider) Name() string { return "ip" }

type ipLookupResponse struct {
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  float64  `json:"accuracy"`
}

// Locate implements Provider.
func (p *IPProvider) Locate(ctx context.Context) (Location, error) {
	start := time.Now()

	resp, err := p.client.Get(ctx, p.url)
	if err != nil {
		if ctx.Err() != nil {
			return Location{}, ctx.Err()
		}
		return Location{}, p.fail(ErrUnavailable, errors.CategoryNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Location{}, p.fail(ErrPermissionDenied, errors.CategoryPermission,
			fmt.Errorf("lookup refused with status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Location{}, p.fail(ErrUnavailable, errors.CategoryHTTP,
			fmt.Errorf("lookup failed with status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLookupBody))
	if err != nil {
		if ctx.Err() != nil {
			return Location{}, ctx.Err()
		}
		return Location{}, p.fail(ErrUnavailable, errors.CategoryNetwork, err)
	}

	var payload ipLookupResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return Location{}, p.fail(ErrUnavailable, errors.CategoryFileParsing,
			fmt.Errorf("invalid lookup response: %w", err))
	}
	if payload.Status == "fail" {
		return Location{}, p.fail(ErrUnavailable, errors.CategoryGeolocation,
			fmt.Errorf("lookup failed: %s", payload.Message))
	}

	lat, lng := payload.Lat, payload.Lon
	if lat == nil || lng == nil {
		lat, lng = payload.Latitude, payload.Longitude
	}
	if lat == nil || lng == nil {
		return Location{}, p.fail(ErrUnavailable, errors.CategoryGeolocation,
			fmt.Errorf("lookup response has no coordinates"))
	}

	loc := Location{
		Latitude:  *lat,
		Longitude: *lng,
		Accuracy:  payload.Accuracy,
		Source:    p.Name(),
		Timestamp: time.Now(),
	}
	if !loc.Valid() {
		return Location{}, p.fail(ErrUnavailable, errors.CategoryValidation,
			fmt.Errorf("lookup returned out of range coordinates %s", loc))
	}

	getLogger().Debug("ip location resolved",
		logger.Duration("elapsed", time.Since(start)))
	return loc, nil
}

func (p *IPProvider) fail(sentinel error, category errors.ErrorCategory, cause error) error {
	return errors.New(fmt.Errorf("%w: %w", sentinel, cause)).
		Component("geolocation").
		Category(category).
		Context("provider", p.Name()).
		Build()
}
