package mapbox

import (
	"context"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phibia-app/phibia-go/internal/httpclient"
)

const (
	testBaseURL = "https://api.mapbox.test"
	reverseURL  = testBaseURL + "/geocoding/v5/mapbox.places/-64.3493,-33.123.json"
)

const reverseJSON = `{"type":"FeatureCollection","features":[
	{"place_name":"Río Cuarto, Córdoba, Argentina","center":[-64.35,-33.12],"relevance":1},
	{"place_name":"Córdoba, Argentina","center":[-64.18,-31.41],"relevance":0.8}
]}`

func newTestClient(t *testing.T, token string) (*Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	client, err := New(Options{
		Token:     token,
		BaseURL:   testBaseURL,
		RateLimit: 1000,
		HTTPClient: httpclient.New(&httpclient.Config{
			DefaultTimeout: 5 * time.Second,
			DisableCookies: true,
			Transport:      transport,
		}),
	})
	require.NoError(t, err)
	return client, transport
}

func TestReverse(t *testing.T) {
	t.Parallel()

	client, transport := newTestClient(t, "pk.test")
	transport.RegisterResponder(http.MethodGet, reverseURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "pk.test", req.URL.Query().Get("access_token"))
		assert.Equal(t, "es", req.URL.Query().Get("language"))
		return httpmock.NewStringResponse(http.StatusOK, reverseJSON), nil
	})

	place, err := client.Reverse(t.Context(), -33.123, -64.3493)
	require.NoError(t, err)
	assert.Equal(t, "Río Cuarto", place.Address)
	assert.Equal(t, "Río Cuarto, Córdoba, Argentina", place.Name)
	assert.InDelta(t, -33.12, place.Latitude, 1e-9)
	assert.InDelta(t, -64.35, place.Longitude, 1e-9)

	// second lookup is served from cache
	assert.Equal(t, "Río Cuarto", client.Address(t.Context(), -33.123, -64.3493))
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestAddress_Fallbacks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		token     string
		responder httpmock.Responder
	}{
		{"no token", "", nil},
		{"no features", "pk.test", httpmock.NewStringResponder(http.StatusOK, `{"features":[]}`)},
		{"unauthorized", "pk.test", httpmock.NewStringResponder(http.StatusUnauthorized, `{"message":"Not Authorized - Invalid Token"}`)},
		{"server error", "pk.test", httpmock.NewStringResponder(http.StatusInternalServerError, ``)},
		{"bad json", "pk.test", httpmock.NewStringResponder(http.StatusOK, `{`)},
		{"transport", "pk.test", httpmock.NewErrorResponder(assert.AnError)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client, transport := newTestClient(t, tt.token)
			if tt.responder != nil {
				transport.RegisterResponder(http.MethodGet, reverseURL, tt.responder)
			}
			assert.Equal(t, UnknownAddress, client.Address(t.Context(), -33.123, -64.3493))
		})
	}
}

func TestReverse_Errors(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, "")
	_, err := client.Reverse(t.Context(), 1, 2)
	assert.ErrorIs(t, err, ErrNoToken)
	assert.False(t, client.Enabled())

	client, transport := newTestClient(t, "pk.test")
	transport.RegisterResponder(http.MethodGet, reverseURL, httpmock.NewStringResponder(http.StatusOK, `{"features":[]}`))
	_, err = client.Reverse(t.Context(), -33.123, -64.3493)
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestSearch(t *testing.T) {
	t.Parallel()

	client, transport := newTestClient(t, "pk.test")
	transport.RegisterRegexpResponder(http.MethodGet,
		regexp.MustCompile(`^https://api\.mapbox\.test/geocoding/v5/mapbox\.places/R%C3%ADo%20Cuarto\.json`),
		httpmock.NewStringResponder(http.StatusOK, reverseJSON))

	places, err := client.Search(t.Context(), "  Río Cuarto ")
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, "Río Cuarto", places[0].Address)
	assert.Equal(t, "Córdoba", places[1].Address)

	_, err = client.Search(t.Context(), "   ")
	assert.Error(t, err)
}

func TestLookup_ContextCancelled(t *testing.T) {
	t.Parallel()

	client, transport := newTestClient(t, "pk.test")
	transport.RegisterResponder(http.MethodGet, reverseURL, httpmock.NewStringResponder(http.StatusOK, reverseJSON))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := client.Reverse(ctx, -33.123, -64.3493)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestShortAddress(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Río Cuarto", ShortAddress("Río Cuarto, Córdoba, Argentina"))
	assert.Equal(t, "Argentina", ShortAddress("Argentina"))
	assert.Empty(t, ShortAddress(""))
}

func TestNew_InvalidBaseURL(t *testing.T) {
	t.Parallel()

	_, err := New(Options{BaseURL: "not a url"})
	assert.Error(t, err)
}
