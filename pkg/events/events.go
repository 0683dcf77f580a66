// Package events publishes engine outcomes to downstream consumers such as
// notification senders. Publishing is best effort.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Event types.
const (
	ScheduleGenerated = "schedule.generated"
	SchedulePublished = "schedule.published"
	ShiftReplaced     = "shift.replaced"
	ShiftSickLeave    = "shift.sick_leave"
)

// Event is one engine outcome.
type Event struct {
	Type           string    `json:"type"`
	OrganizationID string    `json:"organization_id"`
	ScheduleID     string    `json:"schedule_id,omitempty"`
	ShiftID        string    `json:"shift_id,omitempty"`
	Payload        any       `json:"payload,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// RedisStreamPublisher appends events to a Redis stream.
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamPublisher returns a publisher writing to stream, trimmed to
// roughly 10k entries.
func NewRedisStreamPublisher(client *redis.Client, stream string) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: 10000}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":      e.Type,
			"data":      string(data),
			"timestamp": e.OccurredAt.Unix(),
		},
	}).Err()
}

// LogPublisher writes events to the log when no broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

// NewLogPublisher returns a publisher logging at info level.
func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.log.Info("event",
		zap.String("type", e.Type),
		zap.String("organization_id", e.OrganizationID),
		zap.String("schedule_id", e.ScheduleID),
		zap.String("shift_id", e.ShiftID),
		zap.Any("payload", e.Payload),
	)
	return nil
}

// Dispatcher publishes in the background so that a slow or failing broker
// never affects the request that produced the event.
type Dispatcher struct {
	pub     Publisher
	log     *zap.Logger
	timeout time.Duration
}

// NewDispatcher wraps pub.
func NewDispatcher(pub Publisher, log *zap.Logger) *Dispatcher {
	return &Dispatcher{pub: pub, log: log, timeout: 5 * time.Second}
}

// Dispatch publishes e asynchronously. Failures are logged and dropped.
func (d *Dispatcher) Dispatch(e Event) {
	if d == nil || d.pub == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.pub.Publish(ctx, e); err != nil {
			d.log.Warn("publish event failed", zap.String("type", e.Type), zap.Error(err))
		}
	}()
}
