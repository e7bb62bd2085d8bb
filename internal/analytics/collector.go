package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/searchlab/prodsearch/pkg/kafka"
)

const (
	defaultBufferSize    = 10000
	defaultBatchSize     = 100
	defaultFlushInterval = 5 * time.Second
)

// Collector ships analytics events to Kafka without ever blocking the
// request path: Track hands the event to a buffered channel and a background
// loop flushes accumulated events in batches, either when the batch fills or
// on a timer. Events are dropped, with a warning, when the channel is full.
type Collector struct {
	producer      *kafka.Producer
	eventCh       chan any
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}
}

// NewCollector creates a Collector with the given channel capacity.
// Non-positive values fall back to the default.
func NewCollector(producer *kafka.Producer, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Collector{
		producer:      producer,
		eventCh:       make(chan any, bufferSize),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the background flush loop. Cancelling ctx drains whatever
// is still buffered before the loop exits.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Track enqueues an event for delivery. It never blocks; when the buffer is
// full the event is dropped.
func (c *Collector) Track(event any) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops intake and waits for the flush loop to deliver what remains.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.batchSize)
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				c.deliver(context.Background(), batch)
				return
			}
			batch = append(batch, kafka.Event{Key: "analytics", Value: event})
			if len(batch) >= c.batchSize {
				c.deliver(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			c.deliver(ctx, batch)
			batch = batch[:0]
		case <-ctx.Done():
			batch = c.drainInto(batch)
			// Final delivery gets a short deadline of its own.
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			c.deliver(flushCtx, batch)
			cancel()
			return
		}
	}
}

// drainInto moves whatever is still queued on the channel into batch.
func (c *Collector) drainInto(batch []kafka.Event) []kafka.Event {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, kafka.Event{Key: "analytics", Value: event})
		default:
			return batch
		}
	}
}

func (c *Collector) deliver(ctx context.Context, batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	if err := c.producer.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("failed to publish analytics batch",
			"batch_size", len(batch),
			"error", err,
		)
		return
	}
	c.logger.Debug("analytics batch published", "events", len(batch))
}
