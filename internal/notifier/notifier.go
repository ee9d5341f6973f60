// Package notifier drains the notification queue into Postgres in batches.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/campus/internal/cache"
	"github.com/jason-s-yu/campus/internal/database"
	"github.com/jason-s-yu/campus/internal/models"
	"github.com/jason-s-yu/campus/internal/realtime"
)

// StoreFunc persists one batch atomically and returns the stored rows.
type StoreFunc func(ctx context.Context, batch []models.Notification) ([]models.Notification, error)

type Options struct {
	Queue      string
	BatchSize  int
	FlushDelay time.Duration
	// Store defaults to database.InsertNotifications.
	Store StoreFunc
	// Publisher, when set, receives an INSERT event per stored notification.
	Publisher realtime.Publisher
}

// Service pops notification records from a Redis list, accumulates them and
// flushes each batch in a single transaction.
type Service struct {
	rdb    *redis.Client
	opts   Options
	logger *logrus.Logger

	batchMu sync.Mutex
	batch   []cache.NotificationRecord
}

func New(rdb *redis.Client, opts Options, logger *logrus.Logger) *Service {
	if opts.Queue == "" {
		opts.Queue = cache.QueueName
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.Store == nil {
		opts.Store = database.InsertNotifications
	}
	return &Service{
		rdb:    rdb,
		opts:   opts,
		logger: logger,
		batch:  make([]cache.NotificationRecord, 0, opts.BatchSize),
	}
}

// Run reads the queue until ctx is cancelled, then flushes whatever is pending.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.FlushDelay)
	defer ticker.Stop()

	s.logger.Infof("notifier started on queue %s", s.opts.Queue)
	for {
		select {
		case <-ctx.Done():
			s.Flush(context.Background())
			s.logger.Info("notifier shutting down")
			return nil

		case <-ticker.C:
			s.Flush(ctx)

		default:
			// BLPop with a short timeout so that cancellation and the ticker are handled.
			res, err := s.rdb.BLPop(ctx, time.Second, s.opts.Queue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					s.logger.Errorf("BLPop: %v", err)
					time.Sleep(s.opts.FlushDelay)
				}
				continue
			}
			if len(res) < 2 {
				continue
			}

			// res[0] is the queue name and res[1] the payload.
			var record cache.NotificationRecord
			if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
				s.logger.Warnf("invalid notification record: %v", err)
				continue
			}
			if s.append(record) {
				s.Flush(ctx)
			}
		}
	}
}

// append adds a record and reports whether the batch is full.
func (s *Service) append(record cache.NotificationRecord) bool {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.batch = append(s.batch, record)
	return len(s.batch) >= s.opts.BatchSize
}

// Flush stores the pending batch and returns how many rows were written.
func (s *Service) Flush(ctx context.Context) int {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return 0
	}
	pending := make([]models.Notification, 0, len(s.batch))
	for _, r := range s.batch {
		pending = append(pending, models.Notification{
			UserID:  r.UserID,
			Type:    r.Type,
			Title:   r.Title,
			Message: r.Message,
			Link:    r.Link,
		})
	}
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	stored, err := s.opts.Store(ctx, pending)
	if err != nil {
		s.logger.Errorf("flush %d notifications: %v", len(pending), err)
		return 0
	}
	for _, n := range stored {
		realtime.PublishChange(ctx, s.opts.Publisher, s.logger, "notifications", realtime.Insert, n, nil)
	}
	s.logger.Debugf("flushed %d notifications", len(stored))
	return len(stored)
}
