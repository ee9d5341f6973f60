package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ChannelPrefix is prepended to the table name to form the pub/sub channel.
const ChannelPrefix = "changes:"

// Publisher emits change events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Feed carries change events over Redis pub/sub so every server instance sees every write.
type Feed struct {
	rdb    *redis.Client
	logger *logrus.Logger
	ready  chan struct{}
}

func NewFeed(rdb *redis.Client, logger *logrus.Logger) *Feed {
	return &Feed{rdb: rdb, logger: logger, ready: make(chan struct{})}
}

func (f *Feed) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	if err := f.rdb.Publish(ctx, ChannelPrefix+e.Table, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s%s: %w", ChannelPrefix, e.Table, err)
	}
	return nil
}

// Ready is closed once Run holds its subscription.
func (f *Feed) Ready() <-chan struct{} {
	return f.ready
}

// Run subscribes to every change channel and dispatches events to hub until ctx is done.
func (f *Feed) Run(ctx context.Context, hub *Hub) error {
	ps := f.rdb.PSubscribe(ctx, ChannelPrefix+"*")
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("change feed subscribe: %w", err)
	}
	close(f.ready)
	f.logger.Info("change feed subscribed")

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				f.logger.Warnf("invalid change event on %s: %v", msg.Channel, err)
				continue
			}
			hub.Dispatch(e)
		}
	}
}

// LocalPublisher dispatches straight into a hub; used when no Redis is configured and in tests.
type LocalPublisher struct {
	Hub *Hub
}

func (p LocalPublisher) Publish(_ context.Context, e Event) error {
	p.Hub.Dispatch(e)
	return nil
}

// PublishChange builds and publishes an event, logging instead of failing: the write it
// describes has already committed.
func PublishChange(ctx context.Context, pub Publisher, logger *logrus.Logger, table string, typ EventType, record, old any) {
	if pub == nil {
		return
	}
	e, err := NewEvent(table, typ, record, old)
	if err == nil {
		err = pub.Publish(ctx, e)
	}
	if err != nil {
		logger.WithFields(logrus.Fields{"table": table, "type": typ}).Warnf("publish change: %v", err)
	}
}
