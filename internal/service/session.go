package service

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-census/internal/highlight"
	"github.com/joeblew999/plat-census/internal/layer"
	"github.com/joeblew999/plat-census/internal/mapview"
)

// Session is one browser tab's highlight state. Its controller only ever
// runs under mu, so events within a session are handled one at a time.
type Session struct {
	ID string

	mu       sync.Mutex
	ctrl     *highlight.Controller
	lastSeen time.Time
}

// Snapshot is a consistent read of a session.
type Snapshot struct {
	Highlight string
	Info      string
	Overlay   *geojson.FeatureCollection
}

// SessionService hands out sessions and routes map events to them.
type SessionService struct {
	host   highlight.HitTester
	infoOn highlight.InfoOn
	ttl    time.Duration
	bus    *EventBus
	logger *log.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// SessionConfig configures a SessionService.
type SessionConfig struct {
	InfoOn highlight.InfoOn
	TTL    time.Duration // zero disables expiry
	Bus    *EventBus
	Logger *log.Logger
}

// NewSessionService creates a session service resolving features on host.
func NewSessionService(host highlight.HitTester, cfg SessionConfig) *SessionService {
	if cfg.Bus == nil {
		cfg.Bus = NewEventBus()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &SessionService{
		host:     host,
		infoOn:   cfg.InfoOn,
		ttl:      cfg.TTL,
		bus:      cfg.Bus,
		logger:   cfg.Logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Bus returns the event bus highlight changes are published on.
func (s *SessionService) Bus() *EventBus {
	return s.bus
}

// Open returns the session for id, creating it when id is empty or
// unknown. Unknown IDs that are valid UUIDs are kept, so a page survives a
// server restart; anything else gets a fresh ID.
func (s *SessionService) Open(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	sess := &Session{
		ID:       id,
		ctrl:     highlight.New(s.host, layer.NewOverlay(), highlight.WithInfoOn(s.infoOn)),
		lastSeen: s.now(),
	}
	s.sessions[id] = sess
	s.logger.Debug("session opened", "session", id)
	return sess
}

// Lookup returns an existing session.
func (s *SessionService) Lookup(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Result is the outcome of one dispatched event. Overlay is read under the
// same lock as the update, so it always shows Update.Highlight.
type Result struct {
	highlight.Update
	Overlay *geojson.FeatureCollection
}

// Dispatch feeds ev to the session's controller and publishes the change,
// if any, on the bus.
func (s *SessionService) Dispatch(sess *Session, ev mapview.Event) Result {
	sess.mu.Lock()
	r := Result{Update: sess.ctrl.Handle(ev)}
	r.Overlay = sess.ctrl.Overlay().FeatureCollection()
	sess.lastSeen = s.now()
	sess.mu.Unlock()

	if r.HighlightChanged {
		e := Event{Session: sess.ID, Action: "cleared", Info: r.Info, Overlay: r.Overlay}
		if r.Highlight != nil {
			e.Action = "highlighted"
			e.FeatureID = r.Highlight.ID
		}
		s.bus.Publish(e)
		s.logger.Debug("highlight", "session", sess.ID, "action", e.Action, "feature", e.FeatureID)
	}
	return r
}

// Snapshot reads the session's state.
func (s *SessionService) Snapshot(sess *Session) Snapshot {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	snap := Snapshot{
		Info:    sess.ctrl.Info(),
		Overlay: sess.ctrl.Overlay().FeatureCollection(),
	}
	if f := sess.ctrl.State(); f != nil {
		snap.Highlight = f.ID
	}
	return snap
}

// Sweep drops sessions idle for longer than the TTL and returns how many
// were removed.
func (s *SessionService) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastSeen.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("sessions expired", "count", removed, "remaining", len(s.sessions))
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *SessionService) RunSweeper(ctx context.Context, every time.Duration) {
	if s.ttl <= 0 || every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}

// Len returns the number of live sessions.
func (s *SessionService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
