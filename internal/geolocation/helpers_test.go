package geolocation

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/phibia-app/phibia-go/internal/httpclient"
)

const testLookupURL = "http://ip-api.test/json/"

// setupHTTPMock returns a client whose requests are served by a mock transport.
func setupHTTPMock(t *testing.T) (*httpclient.Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	client := httpclient.New(&httpclient.Config{
		DefaultTimeout: 5 * time.Second,
		DisableCookies: true,
		Transport:      transport,
	})
	return client, transport
}

// fakeProvider returns a canned result and counts calls.
type fakeProvider struct {
	loc   Location
	err   error
	block bool
	calls atomic.Int32
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Locate(ctx context.Context) (Location, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return Location{}, ctx.Err()
	}
	return f.loc, f.err
}
