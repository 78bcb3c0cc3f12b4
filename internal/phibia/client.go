// Package phibia is the client for the phibIA backend: species prediction,
// user captures, the species catalog, profile and authentication.
package phibia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/httpclient"
	"github.com/phibia-app/phibia-go/internal/logger"
)

const (
	defaultLatitudeField  = "latitude"
	defaultLongitudeField = "longitude"
	defaultCatalogTTL     = 6 * time.Hour

	// maxJSONBody bounds decoded JSON responses.
	maxJSONBody = 8 << 20
)

// Options configures a Client.
type Options struct {
	// BaseURL is the absolute API_URL, e.g. http://localhost:5000/api
	BaseURL string

	// LatitudeField and LongitudeField name the multipart coordinate fields
	LatitudeField  string
	LongitudeField string

	// PredictTimeout bounds one prediction upload; zero leaves it to the caller
	PredictTimeout time.Duration

	// CatalogTTL is how long the species catalog is cached
	CatalogTTL time.Duration

	// SessionFile persists the session cookie between runs; empty disables it
	SessionFile string

	// HTTPClient is shared by all calls; nil creates a default client
	HTTPClient *httpclient.Client
}

// Client talks to the phibIA backend. All calls share one cookie jar, so a
// login applies to every later request. It is safe for concurrent use.
type Client struct {
	http           *httpclient.Client
	base           *url.URL
	latField       string
	lngField       string
	predictTimeout time.Duration
	sessionFile    string

	catalog      *cache.Cache
	catalogTTL   time.Duration
	catalogGroup singleflight.Group

	log logger.Logger
}

// New creates a Client and restores a persisted session cookie if present.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Newf("invalid API base URL %q", opts.BaseURL).
			Component("phibia-api").
			Category(errors.CategoryConfiguration).
			Build()
	}

	c := &Client{
		http:           opts.HTTPClient,
		base:           base,
		latField:       opts.LatitudeField,
		lngField:       opts.LongitudeField,
		predictTimeout: opts.PredictTimeout,
		sessionFile:    opts.SessionFile,
		catalogTTL:     opts.CatalogTTL,
		log:            logger.Global().Module("phibia"),
	}
	if c.http == nil {
		c.http = httpclient.New(nil)
	}
	if c.latField == "" {
		c.latField = defaultLatitudeField
	}
	if c.lngField == "" {
		c.lngField = defaultLongitudeField
	}
	if c.catalogTTL <= 0 {
		c.catalogTTL = defaultCatalogTTL
	}
	// no janitor goroutine; expired entries are dropped on read
	c.catalog = cache.New(c.catalogTTL, 0)

	if c.sessionFile != "" {
		if err := c.http.LoadCookies(c.sessionFile, c.base); err != nil {
			c.log.Warn("failed to restore session", logger.String("path", c.sessionFile), logger.Error(err))
		}
	}

	return c, nil
}

// NewFromSettings creates a Client from loaded settings.
func NewFromSettings(settings *conf.Settings, httpClient *httpclient.Client) (*Client, error) {
	base, err := settings.APIBaseURL()
	if err != nil {
		return nil, err
	}
	return New(Options{
		BaseURL:        base.String(),
		LatitudeField:  settings.API.LatitudeField,
		LongitudeField: settings.API.LongitudeField,
		PredictTimeout: settings.API.PredictTimeout,
		CatalogTTL:     settings.API.CatalogTTL,
		SessionFile:    settings.SessionFile(),
		HTTPClient:     httpClient,
	})
}

// BaseURL returns the API_URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// endpoint joins path segments onto the API base URL. Segments are escaped.
func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	return c.base.JoinPath(escaped...).String()
}

// doJSON sends body as JSON (nil for none) and decodes a 2xx response into out.
// 401 and 422 map to ErrNotAuthenticated when authRequired is set.
func (c *Client) doJSON(ctx context.Context, op, method, rawURL string, body, out any, authRequired bool) error {
	start := time.Now()

	var (
		resp *http.Response
		err  error
	)
	if body == nil && method == http.MethodGet {
		resp, err = c.http.Get(ctx, rawURL)
	} else {
		resp, err = c.http.SendBody(ctx, method, rawURL, "", body)
	}
	if err != nil {
		return transportError(ctx, op, rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug("backend call",
		logger.String("operation", op),
		logger.Int("status", resp.StatusCode),
		logger.Duration("elapsed", time.Since(start)))

	if authRequired && isAuthStatus(resp.StatusCode) {
		return notAuthenticated(op, resp)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return serverError(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxJSONBody))
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBody))
	if err != nil {
		return transportError(ctx, op, rawURL, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return decodeError(op, err)
	}
	return nil
}

func isAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusUnprocessableEntity
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.Close()
}

func validateID(kind string, id int) error {
	if id <= 0 {
		return errors.New(fmt.Errorf("invalid %s id %d", kind, id)).
			Component("phibia-api").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}
