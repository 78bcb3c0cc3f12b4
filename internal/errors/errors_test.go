package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) { r.reported = append(r.reported, ee) }
func (r *recordingReporter) IsEnabled() bool               { return true }

func TestBuildWithoutTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
}

func TestBuilderSetsContext(t *testing.T) {
	t.Parallel()

	ee := Newf("upload failed: %d", 500).
		Component("phibia-api").
		Category(CategoryServer).
		Priority("bogus").
		Context("status", 500).
		NetworkContext("https://example.org/predict", 0).
		Build()

	assert.Equal(t, "phibia-api", ee.GetComponent())
	assert.Equal(t, PriorityMedium, ee.Priority)
	ctx := ee.GetContext()
	assert.Equal(t, 500, ctx["status"])
	assert.Equal(t, "https-endpoint", ctx["url_category"])
	assert.True(t, IsCategory(ee, CategoryServer))
}

func TestDetectCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		component string
		want      ErrorCategory
	}{
		{"cancel", context.Canceled, "", CategoryCancellation},
		{"deadline", context.DeadlineExceeded, "", CategoryTimeout},
		{"permission", fmt.Errorf("permission denied by user"), "", CategoryPermission},
		{"component fallback", fmt.Errorf("boom"), "datastore", CategoryDatabase},
		{"nested", New(fmt.Errorf("x")).Category(CategoryAuth).Build(), "", CategoryAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, detectCategory(tt.err, tt.component))
		})
	}
}

func TestIsMatchesWrappedSentinel(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("sentinel")
	ee := New(fmt.Errorf("wrapped: %w", sentinel)).Category(CategoryNetwork).Build()

	assert.True(t, Is(ee, sentinel))
	assert.True(t, Is(ee, &EnhancedError{Category: CategoryNetwork}))
	assert.False(t, IsNotFound(ee))
}

func TestReporterReceivesBuiltErrors(t *testing.T) {
	reporter := &recordingReporter{}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	New(fmt.Errorf("disk full")).Component("datastore").Category(CategoryDatabase).Build()

	require.Len(t, reporter.reported, 1)
	assert.Equal(t, "datastore", reporter.reported[0].GetComponent())
}

func TestScrubMessageForPrivacy(t *testing.T) {
	t.Parallel()

	msg := "GET https://api.mapbox.com/geocoding/v5/mapbox.places/-64.3493,-33.1230.json?access_token=pk.abc&language=es failed for ana@example.com"
	scrubbed := scrubMessageForPrivacy(msg)

	assert.NotContains(t, scrubbed, "pk.abc")
	assert.NotContains(t, scrubbed, "ana@example.com")
	assert.NotContains(t, scrubbed, "-33.1230")
	assert.Contains(t, scrubbed, "[EMAIL_REDACTED]")
}

func TestShouldReportSkipsUserActions(t *testing.T) {
	t.Parallel()

	assert.False(t, shouldReport(CategoryCancellation))
	assert.False(t, shouldReport(CategoryPermission))
	assert.True(t, shouldReport(CategoryDatabase))
}
