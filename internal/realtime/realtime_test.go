package realtime

import (
	"context"
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

	"github.com/jason-s-yu/campus/internal/models"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func messageEvent(t *testing.T, typ EventType, m models.Message) Event {
	t.Helper()
	e, err := NewEvent("messages", typ, m, nil)
	require.NoError(t, err)
	return e
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("insert", "messages", "receiver_id=eq.abc")
	require.NoError(t, err)
	assert.Equal(t, Filter{Event: Insert, Table: "messages", Column: "receiver_id", Value: "abc"}, f)
	assert.Equal(t, "INSERT:messages:receiver_id=eq.abc", f.String())

	f, err = ParseFilter("*", "connections", "")
	require.NoError(t, err)
	assert.Equal(t, Any, f.Event)
	assert.Empty(t, f.Column)

	for _, bad := range [][3]string{
		{"TRUNCATE", "messages", ""},
		{"*", "", ""},
		{"*", "messages", "receiver_id"},
		{"*", "messages", "receiver_id=neq.x"},
		{"*", "messages", "=eq.x"},
		{"*", "messages", "receiver_id=eq."},
	} {
		_, err := ParseFilter(bad[0], bad[1], bad[2])
		assert.ErrorIs(t, err, ErrBadFilter, "%v", bad)
	}
}

func TestFilterMatches(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	ins := messageEvent(t, Insert, models.Message{SenderID: other, ReceiverID: me})
	upd := messageEvent(t, Update, models.Message{SenderID: other, ReceiverID: me, IsRead: true})
	del, err := NewEvent("messages", Delete, nil, models.Message{SenderID: other, ReceiverID: me})
	require.NoError(t, err)

	mine := MustFilter("INSERT", "messages", "receiver_id=eq."+me.String())
	assert.True(t, mine.Matches(ins))
	assert.False(t, mine.Matches(upd))

	all := MustFilter("*", "messages", "receiver_id=eq."+me.String())
	assert.True(t, all.Matches(upd))
	assert.True(t, all.Matches(del), "deletes match on the old row")

	assert.False(t, MustFilter("*", "messages", "receiver_id=eq."+other.String()).Matches(ins))
	assert.False(t, MustFilter("*", "connections", "").Matches(ins))
	assert.True(t, MustFilter("UPDATE", "messages", "is_read=eq.true").Matches(upd))
}

func TestHubDispatch(t *testing.T) {
	hub := NewHub(quietLogger(), 1)
	me := uuid.New()

	sub := hub.Subscribe(me, MustFilter("*", "messages", "receiver_id=eq."+me.String()))
	other := hub.Subscribe(uuid.New(), MustFilter("*", "connections", ""))
	assert.Equal(t, 2, hub.Len())

	e := messageEvent(t, Insert, models.Message{SenderID: uuid.New(), ReceiverID: me})
	assert.Equal(t, 1, hub.Dispatch(e))
	assert.Equal(t, 0, hub.Dispatch(e), "full buffer drops instead of blocking")

	got := <-sub.C
	assert.Equal(t, "messages", got.Table)
	assert.Empty(t, other.C)

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)
	_, open := <-sub.C
	assert.False(t, open)
	assert.Equal(t, 1, hub.Len())

	hub.Close()
	assert.Equal(t, 0, hub.Len())
}

func TestFeedRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	hub := NewHub(quietLogger(), 8)
	feed := NewFeed(rdb, quietLogger())
	me := uuid.New()
	sub := hub.Subscribe(me, MustFilter("INSERT", "messages", "receiver_id=eq."+me.String()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx, hub) }()

	select {
	case <-feed.Ready():
	case err := <-done:
		t.Fatalf("feed stopped: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("feed never subscribed")
	}

	m := models.Message{ID: uuid.New(), SenderID: uuid.New(), ReceiverID: me, Content: "hello"}
	PublishChange(ctx, feed, quietLogger(), "messages", Insert, m, nil)

	select {
	case e := <-sub.C:
		var got models.Message
		require.NoError(t, e.Decode(&got))
		assert.Equal(t, m.ID, got.ID)
		assert.Equal(t, "hello", got.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop")
	}
}

// fakeSource counts unread messages from an in-memory slice.
type fakeSource struct {
	mu     sync.Mutex
	msgs   []models.Message
	marked int
}

func (f *fakeSource) UnreadCount(_ context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.msgs {
		if m.ReceiverID == userID && !m.IsRead {
			n++
		}
	}
	return n, nil
}

func (f *fakeSource) Connections(context.Context, uuid.UUID) (*models.ConnectionLists, error) {
	return &models.ConnectionLists{}, nil
}

func (f *fakeSource) Conversations(_ context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.BuildConversations(userID, f.msgs, nil), nil
}

func (f *fakeSource) MarkThreadRead(_ context.Context, reader, partner uuid.UUID) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for i := range f.msgs {
		if f.msgs[i].ReceiverID == reader && f.msgs[i].SenderID == partner && !f.msgs[i].IsRead {
			f.msgs[i].IsRead = true
			out = append(out, f.msgs[i])
		}
	}
	f.marked += len(out)
	return out, nil
}

func (f *fakeSource) add(m models.Message) {
	f.mu.Lock()
	f.msgs = append(f.msgs, m)
	f.mu.Unlock()
}

func TestNewReconcilerValidation(t *testing.T) {
	me := uuid.New()
	src := &fakeSource{}

	_, err := NewReconciler(Request{Topic: "weather"}, me, src)
	assert.Error(t, err)

	_, err = NewReconciler(Request{Topic: TopicMessages, Partner: &me}, me, src)
	assert.ErrorIs(t, err, ErrBadFilter)

	_, err = NewReconciler(Request{Topic: TopicChanges, Event: "*", Table: "messages", Filter: "receiver_id=eq." + uuid.NewString()}, me, src)
	assert.ErrorIs(t, err, ErrForbiddenFilter)

	_, err = NewReconciler(Request{Topic: TopicChanges, Event: "*", Table: "messages", Filter: "content=eq." + me.String()}, me, src)
	assert.ErrorIs(t, err, ErrForbiddenFilter)

	rec, err := NewReconciler(Request{Topic: TopicChanges, Event: "*", Table: "notifications", Filter: "user_id=eq." + me.String()}, me, src)
	require.NoError(t, err)
	assert.Equal(t, "changes:*:notifications:user_id=eq."+me.String(), rec.Key())
}

func TestMessagesReconcilerMarksPartnerThreadRead(t *testing.T) {
	me, partner, stranger := uuid.New(), uuid.New(), uuid.New()
	src := &fakeSource{}
	rec, err := NewReconciler(Request{Topic: TopicMessages, Partner: &partner}, me, src)
	require.NoError(t, err)

	m := models.Message{ID: uuid.New(), SenderID: partner, ReceiverID: me, Content: "yo", CreatedAt: time.Now()}
	src.add(m)
	frames, err := rec.Handle(context.Background(), messageEvent(t, Insert, m))
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, FrameMessage, frames[0].Type)
	assert.Equal(t, FrameSnapshot, frames[1].Type)
	convs := frames[1].Data.([]models.Conversation)
	require.Len(t, convs, 1)
	assert.Zero(t, convs[0].UnreadCount)
	assert.Equal(t, 1, src.marked)

	s := models.Message{ID: uuid.New(), SenderID: stranger, ReceiverID: me, Content: "hi", CreatedAt: time.Now()}
	src.add(s)
	frames, err = rec.Handle(context.Background(), messageEvent(t, Insert, s))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, FrameSnapshot, frames[0].Type)
	assert.Equal(t, 1, src.marked)
}

// collector is a non-blocking send func for sessions.
type collector struct {
	ch chan Frame
}

func (c *collector) send(f Frame) bool {
	select {
	case c.ch <- f:
		return true
	default:
		return false
	}
}

func (c *collector) next(t *testing.T) Frame {
	t.Helper()
	select {
	case f := <-c.ch:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame")
		return Frame{}
	}
}

func TestSessionUnreadCountFollowsReads(t *testing.T) {
	me, partner := uuid.New(), uuid.New()
	hub := NewHub(quietLogger(), 8)
	src := &fakeSource{}
	for i := 0; i < 3; i++ {
		src.add(models.Message{ID: uuid.New(), SenderID: partner, ReceiverID: me})
	}

	out := &collector{ch: make(chan Frame, 16)}
	sess := NewSession(context.Background(), me, hub, src, out.send, quietLogger())
	defer sess.Close()

	sess.Handle(Request{Type: "subscribe", Topic: TopicUnreadCount})
	assert.Equal(t, FrameSubscribed, out.next(t).Type)
	snap := out.next(t)
	assert.Equal(t, map[string]int{"count": 3}, snap.Data)

	marked, err := src.MarkThreadRead(context.Background(), me, partner)
	require.NoError(t, err)
	for _, m := range marked {
		hub.Dispatch(messageEvent(t, Update, m))
	}

	var last Frame
	for range marked {
		last = out.next(t)
	}
	assert.Equal(t, map[string]int{"count": 0}, last.Data)

	sess.Handle(Request{Type: "unsubscribe", Topic: TopicUnreadCount})
	assert.Equal(t, FrameUnsubscribed, out.next(t).Type)
	assert.Empty(t, sess.Topics())
	assert.Equal(t, 0, hub.Len())
}

func TestSessionRejectsBadRequests(t *testing.T) {
	hub := NewHub(quietLogger(), 8)
	out := &collector{ch: make(chan Frame, 4)}
	sess := NewSession(context.Background(), uuid.New(), hub, &fakeSource{}, out.send, quietLogger())
	defer sess.Close()

	sess.Handle(Request{Type: "dance"})
	assert.Equal(t, FrameError, out.next(t).Type)

	sess.Handle(Request{Type: "subscribe", Topic: TopicChanges, Event: "*", Table: "messages", Filter: "receiver_id=eq." + uuid.NewString()})
	f := out.next(t)
	assert.Equal(t, FrameError, f.Type)
	assert.Equal(t, ErrForbiddenFilter.Error(), f.Message)
	assert.Equal(t, 0, hub.Len())
}

func TestSessionResubscribeReplaces(t *testing.T) {
	me := uuid.New()
	hub := NewHub(quietLogger(), 8)
	out := &collector{ch: make(chan Frame, 16)}
	sess := NewSession(context.Background(), me, hub, &fakeSource{}, out.send, quietLogger())

	a, b := uuid.New(), uuid.New()
	sess.Handle(Request{Type: "subscribe", Topic: TopicMessages, Partner: &a})
	sess.Handle(Request{Type: "subscribe", Topic: TopicMessages, Partner: &b})
	assert.Equal(t, 1, hub.Len())
	assert.Equal(t, []string{"messages"}, sess.Topics())

	sess.Close()
	assert.Equal(t, 0, hub.Len())
}
