package web

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/derickschaefer/carprice/internal/options"
	"github.com/derickschaefer/carprice/internal/submission"
)

// CookieName is the cookie that carries the page session ID.
const CookieName = "carprice_session"

// Session is the state of one mounted page: its option controller, its
// prediction lifecycle and the raw form values shown in the form.
type Session struct {
	ID        string
	Options   *options.Controller
	Lifecycle *submission.Lifecycle

	// applyMu serializes Apply so the controller sees selections in the
	// same order as the form values record them.
	applyMu sync.Mutex

	mu       sync.Mutex
	values   submission.Values
	notice   string
	lastSeen time.Time
}

// Values returns a copy of the current form values.
func (s *Session) Values() submission.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values.Clone()
}

// setNotice stores a one-shot banner message; takeNotice clears it.
func (s *Session) setNotice(msg string) {
	s.mu.Lock()
	s.notice = msg
	s.mu.Unlock()
}

func (s *Session) takeNotice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.notice
	s.notice = ""
	return msg
}

// Apply merges posted form values into the session. A changed brand resets
// model and series and reloads the model list; otherwise a changed model
// resets series and reloads the series list. Child values posted alongside
// a changed parent belong to the old parent and are ignored. Concurrent
// calls for one session run one at a time.
func (s *Session) Apply(ctx context.Context, form url.Values) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	prevBrand := s.values[submission.FieldBrand]
	prevModel := s.values[submission.FieldModel]
	for _, f := range submission.Fields {
		switch f.Name {
		case submission.FieldBrand, submission.FieldModel, submission.FieldSeries:
			continue
		}
		if _, ok := form[f.Name]; ok {
			s.values[f.Name] = form.Get(f.Name)
		}
	}

	var brandChanged, modelChanged bool
	brand, model := form.Get(submission.FieldBrand), form.Get(submission.FieldModel)
	_, hasBrand := form[submission.FieldBrand]
	_, hasModel := form[submission.FieldModel]
	_, hasSeries := form[submission.FieldSeries]
	switch {
	case hasBrand && brand != prevBrand:
		s.values.Set(submission.FieldBrand, brand)
		brandChanged = true
	case hasModel && model != prevModel:
		s.values.Set(submission.FieldModel, model)
		modelChanged = true
	case hasSeries:
		s.values[submission.FieldSeries] = form.Get(submission.FieldSeries)
	}
	s.mu.Unlock()

	switch {
	case brandChanged:
		s.Options.SelectBrand(ctx, brand)
	case modelChanged:
		s.Options.SelectModel(ctx, model)
	}
}

// ─── Registry ─────────────────────────────────────────────────────────────────

// Sessions is an in-memory session registry with idle expiry.
type Sessions struct {
	ttl     time.Duration
	now     func() time.Time
	factory func() (*options.Controller, *submission.Lifecycle)

	mu   sync.Mutex
	byID map[string]*Session
}

// NewSessions returns a registry whose sessions expire after ttl of
// inactivity. factory builds the per-session controller and lifecycle.
func NewSessions(ttl time.Duration, now func() time.Time, factory func() (*options.Controller, *submission.Lifecycle)) *Sessions {
	if now == nil {
		now = time.Now
	}
	return &Sessions{
		ttl:     ttl,
		now:     now,
		factory: factory,
		byID:    make(map[string]*Session),
	}
}

// Create registers a fresh session with initial form values.
func (r *Sessions) Create() *Session {
	ctrl, life := r.factory()
	s := &Session{
		ID:        uuid.NewString(),
		Options:   ctrl,
		Lifecycle: life,
		values:    submission.NewValues(),
		lastSeen:  r.now(),
	}
	r.mu.Lock()
	r.byID[s.ID] = s
	r.mu.Unlock()
	return s
}

// Lookup returns the live session with id and marks it as seen. An expired
// session is removed and reported as missing.
func (r *Sessions) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	now := r.now()
	if r.expired(s, now) {
		delete(r.byID, id)
		return nil, false
	}
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
	return s, true
}

// Sweep drops expired sessions and returns how many were removed.
func (r *Sessions) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for id, s := range r.byID {
		if r.expired(s, now) {
			s.Lifecycle.Cancel()
			delete(r.byID, id)
			n++
		}
	}
	return n
}

// Len returns the number of registered sessions.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Run sweeps every interval until ctx is done.
func (r *Sessions) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep()
		}
	}
}

func (r *Sessions) expired(s *Session, now time.Time) bool {
	if r.ttl <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen) > r.ttl
}
