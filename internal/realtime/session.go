package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Session tracks one client's subscriptions. Each subscription runs a worker that turns
// hub events into frames handed to send.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	userID uuid.UUID
	hub    *Hub
	src    Source
	send   func(Frame) bool
	logger *logrus.Logger

	mu     sync.Mutex
	active map[string]*activeSub
	wg     sync.WaitGroup
}

type activeSub struct {
	rec Reconciler
	sub *Subscription
}

// NewSession binds a session to ctx; send must not block.
func NewSession(ctx context.Context, userID uuid.UUID, hub *Hub, src Source, send func(Frame) bool, logger *logrus.Logger) *Session {
	ctx, cancel := context.WithCancel(ctx)
	return &Session{
		ctx:    ctx,
		cancel: cancel,
		userID: userID,
		hub:    hub,
		src:    src,
		send:   send,
		logger: logger,
		active: make(map[string]*activeSub),
	}
}

// Handle applies one client request. Failures are reported to the client as error frames.
func (s *Session) Handle(req Request) {
	switch req.Type {
	case "subscribe":
		s.subscribe(req)
	case "unsubscribe":
		s.unsubscribe(req)
	default:
		s.send(Frame{Type: FrameError, Message: "unknown request type " + req.Type})
	}
}

func (s *Session) subscribe(req Request) {
	rec, err := NewReconciler(req, s.userID, s.src)
	if err != nil {
		s.send(Frame{Type: FrameError, Topic: req.Topic, Message: err.Error()})
		return
	}

	s.mu.Lock()
	if prev, ok := s.active[rec.Key()]; ok {
		s.hub.Unsubscribe(prev.sub)
	}
	a := &activeSub{rec: rec, sub: s.hub.Subscribe(s.userID, rec.Filters()...)}
	s.active[rec.Key()] = a
	s.mu.Unlock()

	s.send(Frame{Type: FrameSubscribed, Topic: rec.Topic()})
	frames, err := rec.Snapshot(s.ctx)
	s.emit(rec, frames, err)

	s.wg.Add(1)
	go s.work(a)
}

func (s *Session) unsubscribe(req Request) {
	rec, err := NewReconciler(req, s.userID, s.src)
	if err != nil {
		s.send(Frame{Type: FrameError, Topic: req.Topic, Message: err.Error()})
		return
	}

	s.mu.Lock()
	a, ok := s.active[rec.Key()]
	delete(s.active, rec.Key())
	s.mu.Unlock()

	if ok {
		s.hub.Unsubscribe(a.sub)
	}
	s.send(Frame{Type: FrameUnsubscribed, Topic: rec.Topic()})
}

func (s *Session) work(a *activeSub) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case e, ok := <-a.sub.C:
			if !ok {
				return
			}
			frames, err := a.rec.Handle(s.ctx, e)
			s.emit(a.rec, frames, err)
		}
	}
}

func (s *Session) emit(rec Reconciler, frames []Frame, err error) {
	for _, f := range frames {
		if !s.send(f) {
			s.logger.Warnf("realtime: outbound buffer full for user %v, dropping %s frame", s.userID, f.Type)
		}
	}
	if err != nil && s.ctx.Err() == nil {
		s.logger.Warnf("realtime: %s reconcile for user %v: %v", rec.Topic(), s.userID, err)
		s.send(Frame{Type: FrameError, Topic: rec.Topic(), Message: "failed to refresh " + string(rec.Topic())})
	}
}

// Topics lists the active subscription keys.
func (s *Session) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.active))
	for k := range s.active {
		out = append(out, k)
	}
	return out
}

// Close drops every subscription and waits for the workers.
func (s *Session) Close() {
	s.cancel()
	s.mu.Lock()
	for k, a := range s.active {
		s.hub.Unsubscribe(a.sub)
		delete(s.active, k)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
