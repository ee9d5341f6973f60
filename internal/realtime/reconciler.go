package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jason-s-yu/campus/internal/models"
)

type Topic string

const (
	TopicUnreadCount Topic = "unread_count"
	TopicConnections Topic = "connections"
	TopicMessages    Topic = "messages"
	TopicChanges     Topic = "changes"
)

// Server frame types.
const (
	FrameSnapshot     = "snapshot"
	FrameMessage      = "message"
	FrameEvent        = "event"
	FrameError        = "error"
	FrameSubscribed   = "subscribed"
	FrameUnsubscribed = "unsubscribed"
)

// Request is a client frame.
type Request struct {
	Type    string     `json:"type"`
	Topic   Topic      `json:"topic"`
	Partner *uuid.UUID `json:"partner,omitempty"`
	// Event, Table and Filter describe a raw "changes" subscription.
	Event  string `json:"event,omitempty"`
	Table  string `json:"table,omitempty"`
	Filter string `json:"filter,omitempty"`
}

// Frame is a server frame.
type Frame struct {
	Type    string `json:"type"`
	Topic   Topic  `json:"topic,omitempty"`
	Data    any    `json:"data,omitempty"`
	Event   *Event `json:"event,omitempty"`
	Message string `json:"message,omitempty"`
}

var ErrForbiddenFilter = errors.New("filter must select the caller's own rows")

// ownColumns are the columns a raw subscription may filter on; the value must be the caller.
var ownColumns = map[string]bool{"sender_id": true, "receiver_id": true, "user_id": true}

// Reconciler turns matching change events into fresh state for one client view.
type Reconciler interface {
	Topic() Topic
	// Key identifies the subscription within a session; subscribing again with the same key replaces it.
	Key() string
	Filters() []Filter
	// Snapshot is sent right after subscribing.
	Snapshot(ctx context.Context) ([]Frame, error)
	Handle(ctx context.Context, e Event) ([]Frame, error)
}

// NewReconciler validates req for userID and builds the matching reconciler.
func NewReconciler(req Request, userID uuid.UUID, src Source) (Reconciler, error) {
	me := userID.String()
	switch req.Topic {
	case TopicUnreadCount:
		return &unreadCount{user: userID, src: src, filters: []Filter{
			MustFilter("INSERT", "messages", "receiver_id=eq."+me),
			MustFilter("UPDATE", "messages", "receiver_id=eq."+me),
		}}, nil

	case TopicConnections:
		return &connections{user: userID, src: src, filters: []Filter{
			MustFilter("*", "connections", "sender_id=eq."+me),
			MustFilter("*", "connections", "receiver_id=eq."+me),
		}}, nil

	case TopicMessages:
		if req.Partner != nil && *req.Partner == userID {
			return nil, fmt.Errorf("%w: partner cannot be yourself", ErrBadFilter)
		}
		return &messages{user: userID, partner: req.Partner, src: src, filters: []Filter{
			MustFilter("*", "messages", "receiver_id=eq."+me),
		}}, nil

	case TopicChanges:
		f, err := ParseFilter(req.Event, req.Table, req.Filter)
		if err != nil {
			return nil, err
		}
		if !ownColumns[f.Column] || f.Value != me {
			return nil, ErrForbiddenFilter
		}
		return &changes{filter: f}, nil
	}
	return nil, fmt.Errorf("unknown topic %q", req.Topic)
}

type unreadCount struct {
	user    uuid.UUID
	src     Source
	filters []Filter
}

func (r *unreadCount) Topic() Topic      { return TopicUnreadCount }
func (r *unreadCount) Key() string       { return string(TopicUnreadCount) }
func (r *unreadCount) Filters() []Filter { return r.filters }

func (r *unreadCount) Snapshot(ctx context.Context) ([]Frame, error) {
	n, err := r.src.UnreadCount(ctx, r.user)
	if err != nil {
		return nil, err
	}
	return []Frame{{Type: FrameSnapshot, Topic: TopicUnreadCount, Data: map[string]int{"count": n}}}, nil
}

func (r *unreadCount) Handle(ctx context.Context, _ Event) ([]Frame, error) {
	return r.Snapshot(ctx)
}

type connections struct {
	user    uuid.UUID
	src     Source
	filters []Filter
}

func (r *connections) Topic() Topic      { return TopicConnections }
func (r *connections) Key() string       { return string(TopicConnections) }
func (r *connections) Filters() []Filter { return r.filters }

func (r *connections) Snapshot(ctx context.Context) ([]Frame, error) {
	lists, err := r.src.Connections(ctx, r.user)
	if err != nil {
		return nil, err
	}
	return []Frame{{Type: FrameSnapshot, Topic: TopicConnections, Data: lists}}, nil
}

func (r *connections) Handle(ctx context.Context, _ Event) ([]Frame, error) {
	return r.Snapshot(ctx)
}

// messages keeps the inbox fresh. With a partner selected, messages from that partner are
// pushed as they arrive and marked read.
type messages struct {
	user    uuid.UUID
	partner *uuid.UUID
	src     Source
	filters []Filter
}

func (r *messages) Topic() Topic      { return TopicMessages }
func (r *messages) Key() string       { return string(TopicMessages) }
func (r *messages) Filters() []Filter { return r.filters }

func (r *messages) Snapshot(ctx context.Context) ([]Frame, error) {
	convs, err := r.src.Conversations(ctx, r.user)
	if err != nil {
		return nil, err
	}
	return []Frame{{Type: FrameSnapshot, Topic: TopicMessages, Data: convs}}, nil
}

func (r *messages) Handle(ctx context.Context, e Event) ([]Frame, error) {
	var frames []Frame
	if r.partner != nil && e.Type == Insert {
		var m models.Message
		if err := e.Decode(&m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		if m.SenderID == *r.partner {
			frames = append(frames, Frame{Type: FrameMessage, Topic: TopicMessages, Data: m})
			if _, err := r.src.MarkThreadRead(ctx, r.user, *r.partner); err != nil {
				return frames, err
			}
		}
	}
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return frames, err
	}
	return append(frames, snap...), nil
}

// changes forwards raw events.
type changes struct {
	filter Filter
}

func (r *changes) Topic() Topic      { return TopicChanges }
func (r *changes) Key() string       { return string(TopicChanges) + ":" + r.filter.String() }
func (r *changes) Filters() []Filter { return []Filter{r.filter} }

func (r *changes) Snapshot(context.Context) ([]Frame, error) { return nil, nil }

func (r *changes) Handle(_ context.Context, e Event) ([]Frame, error) {
	return []Frame{{Type: FrameEvent, Topic: TopicChanges, Event: &e}}, nil
}
