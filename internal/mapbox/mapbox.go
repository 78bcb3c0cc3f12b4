// Package mapbox resolves coordinates to place names and place names to
// coordinates through the Mapbox geocoding API.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/httpclient"
	"github.com/phibia-app/phibia-go/internal/logger"
)

// UnknownAddress is shown when a position cannot be resolved.
const UnknownAddress = "Ubicación desconocida"

const (
	defaultBaseURL  = "https://api.mapbox.com"
	defaultLanguage = "es"
	defaultRate     = 5.0
	defaultCacheTTL = 24 * time.Hour
	placesPath      = "geocoding/v5/mapbox.places"
	maxResponseBody = 1 << 20
)

var (
	// ErrNoToken is returned when no access token is configured.
	ErrNoToken = errors.NewStd("mapbox access token not configured")
	// ErrNoResults is returned when a lookup matches nothing.
	ErrNoResults = errors.NewStd("no geocoding results")
)

// Place is one geocoding result.
type Place struct {
	Name      string  `json:"name"`       // full place_name
	Address   string  `json:"address"`    // place_name up to the first comma
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Relevance float64 `json:"relevance"`
}

type feature struct {
	PlaceName string    `json:"place_name"`
	Center    []float64 `json:"center"` // lng, lat
	Relevance float64   `json:"relevance"`
}

type featureCollection struct {
	Features []feature `json:"features"`
	Message  string    `json:"message"`
}

// Options configures a Client.
type Options struct {
	Token      string
	BaseURL    string
	Language   string
	RateLimit  float64 // requests per second
	CacheTTL   time.Duration
	HTTPClient *httpclient.Client
}

// Client is a rate limited, caching geocoder. It is safe for concurrent use.
type Client struct {
	http     *httpclient.Client
	base     *url.URL
	token    string
	language string
	limiter  *rate.Limiter
	cache    *cache.Cache
	log      logger.Logger
}

// New creates a Client. A missing token is not an error; lookups then fail
// with ErrNoToken and Address falls back to UnknownAddress.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Newf("invalid mapbox base URL %q", opts.BaseURL).
			Component("mapbox").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if opts.Language == "" {
		opts.Language = defaultLanguage
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRate
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = httpclient.New(nil)
	}

	return &Client{
		http:     opts.HTTPClient,
		base:     base,
		token:    opts.Token,
		language: opts.Language,
		limiter:  rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		cache:    cache.New(opts.CacheTTL, 0),
		log:      logger.Global().Module("mapbox"),
	}, nil
}

// NewFromSettings creates a Client from the mapbox settings.
func NewFromSettings(settings *conf.Settings, httpClient *httpclient.Client) (*Client, error) {
	return New(Options{
		Token:      settings.Mapbox.Token,
		BaseURL:    settings.Mapbox.BaseURL,
		Language:   settings.Mapbox.Language,
		RateLimit:  settings.Mapbox.RateLimit,
		CacheTTL:   settings.Mapbox.CacheTTL,
		HTTPClient: httpClient,
	})
}

// Enabled reports whether a token is configured.
func (c *Client) Enabled() bool {
	return c.token != ""
}

// ShortAddress returns placeName up to its first comma.
func ShortAddress(placeName string) string {
	short, _, _ := strings.Cut(placeName, ",")
	return strings.TrimSpace(short)
}

// Reverse resolves coordinates to the best matching place.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (Place, error) {
	query := formatCoord(lng) + "," + formatCoord(lat)
	places, err := c.lookup(ctx, "reverse_geocode", query)
	if err != nil {
		return Place{}, err
	}
	return places[0], nil
}

// Address resolves coordinates to a short address. It never fails; any
// lookup error yields UnknownAddress.
func (c *Client) Address(ctx context.Context, lat, lng float64) string {
	place, err := c.Reverse(ctx, lat, lng)
	if err != nil || place.Address == "" {
		if err != nil && !errors.Is(err, ErrNoToken) && !errors.Is(err, ErrNoResults) && ctx.Err() == nil {
			c.log.Debug("reverse geocoding failed", logger.Error(err))
		}
		return UnknownAddress
	}
	return place.Address
}

// Search resolves a free text query to candidate places, best first.
func (c *Client) Search(ctx context.Context, query string) ([]Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.Newf("empty place query").
			Component("mapbox").
			Category(errors.CategoryValidation).
			Build()
	}
	return c.lookup(ctx, "forward_geocode", query)
}

func (c *Client) lookup(ctx context.Context, op, query string) ([]Place, error) {
	if c.token == "" {
		return nil, errors.New(ErrNoToken).
			Component("mapbox").
			Category(errors.CategoryConfiguration).
			Context("operation", op).
			Build()
	}

	cacheKey := op + "|" + strings.ToLower(query)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.([]Place), nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.New(err).
			Component("mapbox").
			Category(errors.CategoryLimit).
			Context("operation", op).
			Build()
	}

	start := time.Now()
	resp, err := c.http.Get(ctx, c.placesURL(query))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.New(err).
			Component("mapbox").
			Category(errors.CategoryNetwork).
			Context("operation", op).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, errors.New(err).
			Component("mapbox").
			Category(errors.CategoryNetwork).
			Context("operation", op).
			Build()
	}

	var fc featureCollection
	decodeErr := json.Unmarshal(body, &fc)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fc.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		category := errors.CategoryHTTP
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			category = errors.CategoryAuth
		}
		return nil, errors.New(fmt.Errorf("geocoding failed with status %d: %s", resp.StatusCode, msg)).
			Component("mapbox").
			Category(category).
			Context("operation", op).
			Context("status", resp.StatusCode).
			Build()
	}
	if decodeErr != nil {
		return nil, errors.New(fmt.Errorf("invalid geocoding response: %w", decodeErr)).
			Component("mapbox").
			Category(errors.CategoryGeocoding).
			Context("operation", op).
			Build()
	}

	places := make([]Place, 0, len(fc.Features))
	for _, f := range fc.Features {
		if len(f.Center) < 2 {
			continue
		}
		places = append(places, Place{
			Name:      f.PlaceName,
			Address:   ShortAddress(f.PlaceName),
			Longitude: f.Center[0],
			Latitude:  f.Center[1],
			Relevance: f.Relevance,
		})
	}

	c.log.Debug("geocoding lookup",
		logger.String("operation", op),
		logger.Int("results", len(places)),
		logger.Duration("elapsed", time.Since(start)))

	if len(places) == 0 {
		return nil, errors.New(ErrNoResults).
			Component("mapbox").
			Category(errors.CategoryNotFound).
			Context("operation", op).
			Build()
	}

	c.cache.SetDefault(cacheKey, places)
	return places, nil
}

// placesURL builds the request URL. The token is never logged.
func (c *Client) placesURL(query string) string {
	// commas separate lng,lat and are sent literally
	segment := strings.ReplaceAll(url.PathEscape(query), "%2C", ",")
	u := c.base.JoinPath(placesPath, segment+".json")
	q := url.Values{}
	q.Set("access_token", c.token)
	q.Set("language", c.language)
	u.RawQuery = q.Encode()
	return u.String()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
