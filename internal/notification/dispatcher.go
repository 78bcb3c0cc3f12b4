package notification

import (
	"context"
	"fmt"
	"sync"
	"text/template"
	"time"

	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/logger"
	"github.com/phibia-app/phibia-go/internal/observability/metrics"
	"github.com/phibia-app/phibia-go/internal/session"
)

const (
	dispatchQueueSize     = 32
	defaultSendTimeout    = 10 * time.Second
	statusDelivered       = "delivered"
	statusFailed          = "failed"
	errorCategoryTimeout  = "timeout"
	errorCategoryDelivery = "delivery"
)

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Providers     []Provider
	Template      string
	MinConfidence float64 // percent; results without a confidence are always sent
	Timeout       time.Duration
	Metrics       *metrics.NotificationMetrics // optional
}

// Dispatcher turns session results into notifications and delivers them to
// every valid provider from a background worker.
type Dispatcher struct {
	providers     []Provider
	tmpl          *template.Template
	minConfidence float64
	timeout       time.Duration
	metrics       *metrics.NotificationMetrics

	queue chan *Notification
	wg    sync.WaitGroup
	once  sync.Once
}

// NewDispatcher validates providers and the template and starts the worker.
// Providers that fail validation are logged and skipped.
func NewDispatcher(opts DispatcherOptions) (*Dispatcher, error) {
	tmpl, err := ParseTemplate(opts.Template)
	if err != nil {
		return nil, errors.New(fmt.Errorf("invalid notification template: %w", err)).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	log := getLogger()
	var providers []Provider
	for _, p := range opts.Providers {
		if err := p.Validate(); err != nil {
			log.Error("push provider disabled: invalid configuration",
				logger.String("provider", p.Name()),
				logger.Error(err))
			continue
		}
		providers = append(providers, p)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	d := &Dispatcher{
		providers:     providers,
		tmpl:          tmpl,
		minConfidence: opts.MinConfidence,
		timeout:       timeout,
		metrics:       opts.Metrics,
		queue:         make(chan *Notification, dispatchQueueSize),
	}
	d.wg.Go(d.run)
	return d, nil
}

// NewFromSettings builds a shoutrrr-backed dispatcher, or returns nil when
// push notifications are disabled.
func NewFromSettings(settings *conf.Settings, m *metrics.NotificationMetrics) (*Dispatcher, error) {
	push := settings.Notification.Push
	if !push.Enabled {
		return nil, nil
	}
	provider := NewShoutrrrProvider("shoutrrr", push.URLs, []Type{TypeDetection, TypeError}, push.Timeout)
	return NewDispatcher(DispatcherOptions{
		Providers:     []Provider{provider},
		Template:      push.Template,
		MinConfidence: push.MinConfidence,
		Timeout:       push.Timeout,
		Metrics:       m,
	})
}

// ProviderCount returns the number of providers that passed validation.
func (d *Dispatcher) ProviderCount() int {
	return len(d.providers)
}

// Hook returns the session result hook.
func (d *Dispatcher) Hook() session.ResultHook {
	return func(res session.Result) {
		if err := d.NotifyResult(&res); err != nil {
			getLogger().Warn("failed to build detection notification", logger.Error(err))
		}
	}
}

// NotifyResult queues a detection notification for res unless its
// confidence is below the threshold.
func (d *Dispatcher) NotifyResult(res *session.Result) error {
	if res.Confidence != nil && *res.Confidence < d.minConfidence {
		getLogger().Debug("result below notification threshold",
			logger.String("species", res.DisplayName()),
			logger.Float64("confidence", *res.Confidence))
		return nil
	}
	message, err := RenderDetection(d.tmpl, res)
	if err != nil {
		return err
	}
	n := NewNotification(TypeDetection, DefaultTitle, message).
		WithMetadata("result_id", res.ID).
		WithMetadata("species", res.DisplayName())
	d.Enqueue(n)
	return nil
}

// Enqueue schedules n for delivery without blocking. A full queue drops n.
func (d *Dispatcher) Enqueue(n *Notification) {
	select {
	case d.queue <- n:
	default:
		getLogger().Warn("notification queue full, dropping notification", logger.String("id", n.ID))
	}
}

// Close delivers what is queued and stops the worker.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.queue)
		d.wg.Wait()
	})
}

func (d *Dispatcher) run() {
	for n := range d.queue {
		for _, p := range d.providers {
			if p.Accepts(n.Type) {
				d.deliver(p, n)
			}
		}
	}
}

func (d *Dispatcher) deliver(p Provider, n *Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	err := p.Send(ctx, n)
	elapsed := time.Since(start)

	status := statusDelivered
	if err != nil {
		status = statusFailed
	}
	if d.metrics != nil {
		d.metrics.RecordDelivery(p.Name(), status, elapsed)
	}

	if err != nil {
		category := errorCategoryDelivery
		if errors.Is(err, context.DeadlineExceeded) {
			category = errorCategoryTimeout
		}
		if d.metrics != nil {
			d.metrics.RecordDeliveryError(p.Name(), category)
		}
		getLogger().Warn("push notification failed",
			logger.String("provider", p.Name()),
			logger.String("id", n.ID),
			logger.Error(err))
		return
	}

	getLogger().Debug("push notification delivered",
		logger.String("provider", p.Name()),
		logger.Duration("elapsed", elapsed))
}
