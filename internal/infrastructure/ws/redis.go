package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aidocs/platform/internal/application/worker"
	"github.com/aidocs/platform/internal/infrastructure/logger"
)

// channelName is the Redis pub/sub channel job events cross from the
// worker process to whichever API server process holds the subscriber's
// connection.
const channelName = "platform:ws:events"

// RedisPublisher implements worker.Broadcaster by publishing job events to
// Redis instead of pushing directly into a local Hub, since the worker
// loop and the HTTP server that owns client connections run as separate
// processes (cmd/worker and cmd/server).
type RedisPublisher struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisPublisher constructs a RedisPublisher.
func NewRedisPublisher(client *redis.Client, log *logger.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, log: log}
}

// Broadcast implements worker.Broadcaster.
func (p *RedisPublisher) Broadcast(accountID, jobID string, event *worker.JobEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error("marshal job event for publish failed", "job_id", jobID, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.Publish(ctx, channelName, payload).Err(); err != nil {
		p.log.Error("publish job event failed", "job_id", jobID, "error", err)
	}
}

// RedisSubscriber relays job events published to Redis into a local Hub so
// this process's connected WebSocket clients receive them regardless of
// which process's worker loop produced the event.
type RedisSubscriber struct {
	client *redis.Client
	hub    *Hub
	log    *logger.Logger
}

// NewRedisSubscriber constructs a RedisSubscriber.
func NewRedisSubscriber(client *redis.Client, hub *Hub, log *logger.Logger) *RedisSubscriber {
	return &RedisSubscriber{client: client, hub: hub, log: log}
}

// Run subscribes to the job-event channel and relays messages into the hub
// until ctx is cancelled. Call it in a goroutine.
func (s *RedisSubscriber) Run(ctx context.Context) {
	sub := s.client.Subscribe(ctx, channelName)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event worker.JobEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.log.Error("unmarshal published job event failed", "error", err)
				continue
			}
			s.hub.Broadcast(event.AccountID, event.JobID, &JobEvent{
				Type:      event.Type,
				Timestamp: time.Now(),
				JobID:     event.JobID,
				AccountID: event.AccountID,
				Status:    event.Status,
				Progress:  event.Progress,
				Message:   event.Message,
				Error:     event.Error,
			})
		}
	}
}
