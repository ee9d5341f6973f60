package notifier

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/campus/internal/cache"
	"github.com/jason-s-yu/campus/internal/models"
	"github.com/jason-s-yu/campus/internal/realtime"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]models.Notification
	fail    bool
}

func (r *recorder) store(_ context.Context, batch []models.Notification) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errors.New("db down")
	}
	out := make([]models.Notification, len(batch))
	for i, n := range batch {
		n.ID = uuid.New()
		out[i] = n
	}
	r.batches = append(r.batches, out)
	return out, nil
}

func (r *recorder) sizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, b := range r.batches {
		out = append(out, len(b))
	}
	return out
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestServiceBatchesAndPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, cache.ConnectRedis(context.Background(), mr.Addr(), 0))
	t.Cleanup(func() { cache.Rdb.Close(); cache.Rdb = nil })

	user := uuid.New()
	hub := realtime.NewHub(quietLogger(), 16)
	sub := hub.Subscribe(user, realtime.MustFilter("INSERT", "notifications", "user_id=eq."+user.String()))

	rec := &recorder{}
	svc := New(cache.Rdb, Options{
		BatchSize:  2,
		FlushDelay: 500 * time.Millisecond,
		Store:      rec.store,
		Publisher:  realtime.LocalPublisher{Hub: hub},
	}, quietLogger())

	for i := 0; i < 3; i++ {
		require.NoError(t, cache.PublishNotification(context.Background(), cache.NotificationRecord{
			UserID: user, Type: models.NotifyConnectionRequest, Title: "New connection request",
		}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = svc.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		total := 0
		for _, n := range rec.sizes() {
			total += n
		}
		return total == 3
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 2, rec.sizes()[0])

	for i := 0; i < 3; i++ {
		select {
		case e := <-sub.C:
			var n models.Notification
			require.NoError(t, e.Decode(&n))
			assert.Equal(t, user, n.UserID)
		case <-time.After(time.Second):
			t.Fatal("missing notification event")
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("notifier did not stop")
	}
}

func TestFlushFailureDropsBatch(t *testing.T) {
	rec := &recorder{fail: true}
	svc := New(nil, Options{BatchSize: 10, Store: rec.store}, quietLogger())

	assert.False(t, svc.append(cache.NotificationRecord{UserID: uuid.New(), Title: "x"}))
	assert.Equal(t, 0, svc.Flush(context.Background()))
	assert.Equal(t, 0, svc.Flush(context.Background()), "nothing pending after a failed flush")
}

func TestDefaults(t *testing.T) {
	svc := New(redis.NewClient(&redis.Options{}), Options{}, quietLogger())
	assert.Equal(t, cache.QueueName, svc.opts.Queue)
	assert.Equal(t, 20, svc.opts.BatchSize)
	assert.NotNil(t, svc.opts.Store)
}
