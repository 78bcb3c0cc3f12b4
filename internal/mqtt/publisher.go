package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/phibia-app/phibia-go/internal/logger"
	"github.com/phibia-app/phibia-go/internal/session"
)

const publishQueueSize = 16

// Publisher sends session results to the broker from its own goroutine so a
// slow broker never holds up the session.
type Publisher struct {
	client  Client
	topic   string
	station string
	zone    *time.Location
	timeout time.Duration

	queue chan *ResultDTO
	wg    sync.WaitGroup
	once  sync.Once
}

// NewPublisher starts a publisher. Call Close to drain and stop it.
func NewPublisher(client Client, cfg Config, station string, zone *time.Location) *Publisher {
	p := &Publisher{
		client:  client,
		topic:   cfg.Topic,
		station: station,
		zone:    zone,
		timeout: cfg.PublishTimeout,
		queue:   make(chan *ResultDTO, publishQueueSize),
	}
	if p.topic == "" {
		p.topic = defaultTopic
	}
	if p.timeout <= 0 {
		p.timeout = DefaultConfig().PublishTimeout
	}
	p.wg.Go(p.run)
	return p
}

// Hook returns the session result hook.
func (p *Publisher) Hook() session.ResultHook {
	return func(res session.Result) {
		p.Enqueue(&res)
	}
}

// Enqueue schedules res for publishing. It never blocks; when the queue is
// full the result is dropped and logged.
func (p *Publisher) Enqueue(res *session.Result) {
	dto := NewResultDTO(res, p.station, p.zone)
	select {
	case p.queue <- dto:
	default:
		getLogger().Warn("publish queue full, dropping result", logger.String("id", dto.ID))
	}
}

// Close publishes what is queued and stops the worker.
func (p *Publisher) Close() {
	p.once.Do(func() {
		close(p.queue)
		p.wg.Wait()
	})
}

func (p *Publisher) run() {
	log := getLogger()
	for dto := range p.queue {
		payload, err := json.Marshal(dto)
		if err != nil {
			log.Error("failed to encode result", logger.String("id", dto.ID), logger.Error(err))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if !p.client.IsConnected() {
			if err := p.client.Connect(ctx); err != nil {
				cancel()
				log.Warn("MQTT broker unavailable, result not published",
					logger.String("id", dto.ID),
					logger.Error(err))
				continue
			}
		}
		err = p.client.Publish(ctx, p.topic, payload)
		cancel()

		if err != nil {
			log.Warn("failed to publish result", logger.String("id", dto.ID), logger.Error(err))
			continue
		}
		log.Debug("result published",
			logger.String("topic", p.topic),
			logger.String("species", dto.ScientificName))
	}
}
