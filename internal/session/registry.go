// Package session maps session identifiers to conversation state.
//
// A session owns its transcript and its active-collection pointer. Sessions
// are in-memory only: process restart destroys them. The registry is the
// single writer for session state; all mutation is serialized per session
// identifier, never behind one global lock.
package session

import (
	"sync"
	"time"
)

// DefaultMaxExchanges caps the transcript at the most recent exchanges
// (10 question/answer pairs, 20 messages).
const DefaultMaxExchanges = 10

// Exchange is one question/answer pair in a session transcript.
type Exchange struct {
	Question string
	Answer   string
	At       time.Time
}

// Session is a snapshot of one conversation scope.
type Session struct {
	// ID is the opaque session token.
	ID string

	// BaseCollection is the collection new and reset sessions answer from.
	BaseCollection string

	// UploadedCollection is the session's uploaded collection, empty if the
	// session is on the base collection.
	UploadedCollection string

	// Transcript is the ordered sequence of prior exchanges, oldest first.
	Transcript []Exchange

	CreatedAt time.Time
}

// ActiveCollection returns the collection queries for this session go to.
// Uploaded collections shadow the base collection while bound.
func (s Session) ActiveCollection() string {
	if s.UploadedCollection != "" {
		return s.UploadedCollection
	}
	return s.BaseCollection
}

// entry holds live session state behind its own mutex, so operations on
// unrelated sessions never contend.
type entry struct {
	mu sync.Mutex
	s  Session
}

// Registry resolves session identifiers to sessions.
type Registry struct {
	baseCollection string
	maxExchanges   int
	now            func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

// Option configures a Registry.
type Option func(*Registry)

// WithMaxExchanges overrides the transcript cap.
func WithMaxExchanges(n int) Option {
	return func(r *Registry) { r.maxExchanges = n }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a registry whose sessions start on baseCollection.
func NewRegistry(baseCollection string, opts ...Option) *Registry {
	r := &Registry{
		baseCollection: baseCollection,
		maxExchanges:   DefaultMaxExchanges,
		now:            time.Now,
		sessions:       make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the session for id, creating it bound to the base
// collection on first contact. Creation is atomic per identifier: two
// concurrent Resolve calls for the same unseen id observe the same session.
func (r *Registry) Resolve(id string) Session {
	e := r.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(&e.s)
}

// entryFor looks up or creates the entry for id.
func (r *Registry) entryFor(id string) *entry {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[id]; ok {
		return e
	}
	e = &entry{s: Session{
		ID:             id,
		BaseCollection: r.baseCollection,
		CreatedAt:      r.now(),
	}}
	r.sessions[id] = e
	return e
}

// BindUpload switches the session's active collection to an uploaded one,
// overwriting any prior uploaded binding. Returns the replaced uploaded
// collection ID (empty if the session was on the base collection) so the
// caller can garbage-collect it.
func (r *Registry) BindUpload(id, collectionID string) (previous string) {
	e := r.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	previous = e.s.UploadedCollection
	e.s.UploadedCollection = collectionID
	return previous
}

// Reset clears the transcript and reverts the session to the base
// collection. Returns the now-unreferenced uploaded collection ID, if any.
// Idempotent: resetting twice leaves the session in the same state as once.
func (r *Registry) Reset(id string) (released string) {
	e := r.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	released = e.s.UploadedCollection
	e.s.UploadedCollection = ""
	e.s.Transcript = nil
	return released
}

// AppendExchange records a completed question/answer pair, trimming the
// transcript to the most recent exchanges. Called exactly once per
// successful answer; the append is not interruptible mid-way.
func (r *Registry) AppendExchange(id, question, answer string) {
	e := r.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.Transcript = append(e.s.Transcript, Exchange{
		Question: question,
		Answer:   answer,
		At:       r.now(),
	})
	if n := len(e.s.Transcript); n > r.maxExchanges {
		e.s.Transcript = append([]Exchange(nil), e.s.Transcript[n-r.maxExchanges:]...)
	}
}

// Len reports the number of known sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// snapshot copies session state so callers never alias live transcript slices.
func snapshot(s *Session) Session {
	out := *s
	out.Transcript = append([]Exchange(nil), s.Transcript...)
	return out
}
