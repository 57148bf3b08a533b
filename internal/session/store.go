package session

import (
	"strings"
	"sync"
	"time"
)

// Session accumulates committed letters for one capture session alongside the
// stability window of recent candidate labels. Sessions are only ever touched
// through Store, which provides per-key mutual exclusion; Session methods
// themselves do not lock.
type Session struct {
	letters   []string
	window    *Window
	updatedAt time.Time
}

func (s *Session) Letters() []string {
	out := make([]string, len(s.letters))
	copy(out, s.letters)
	return out
}

func (s *Session) Text() string {
	return strings.Join(s.letters, "")
}

// Append commits a letter and clears the stability window.
func (s *Session) Append(letter string) {
	s.letters = append(s.letters, letter)
	s.window.Reset()
	s.updatedAt = time.Now()
}

// LastLetter returns the most recently committed letter, if any.
func (s *Session) LastLetter() (string, bool) {
	if len(s.letters) == 0 {
		return "", false
	}
	return s.letters[len(s.letters)-1], true
}

func (s *Session) Window() *Window { return s.window }

func (s *Session) Touch() { s.updatedAt = time.Now() }

func (s *Session) UpdatedAt() time.Time { return s.updatedAt }

type entry struct {
	mu   sync.Mutex
	sess *Session
}

// Store is a concurrency-safe map of session id to accumulation state.
// Mutations of the same id are serialized; different ids proceed
// independently. Sessions are created on first reference.
type Store struct {
	mu        sync.Mutex
	entries   map[string]*entry
	windowCap int
}

func NewStore(windowCap int) *Store {
	return &Store{
		entries:   make(map[string]*entry),
		windowCap: windowCap,
	}
}

func (st *Store) lookup(id string) *entry {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.entries[id]
	if !ok {
		e = &entry{sess: &Session{window: NewWindow(st.windowCap), updatedAt: time.Now()}}
		st.entries[id] = e
	}
	return e
}

// Update runs fn with exclusive access to the session for id, creating the
// session if it does not exist.
func (st *Store) Update(id string, fn func(*Session)) {
	e := st.lookup(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.sess)
}

// Clear removes the session entirely. A later reference starts fresh.
func (st *Store) Clear(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.entries[id]; !ok {
		return false
	}
	delete(st.entries, id)
	return true
}

// TakeAndClear atomically reads the accumulated text and deletes the session,
// so a hand-off cannot race with a concurrent mutation of the same id. It
// reports false when the session does not exist.
func (st *Store) TakeAndClear(id string) (string, bool) {
	st.mu.Lock()
	e, ok := st.entries[id]
	if ok {
		delete(st.entries, id)
	}
	st.mu.Unlock()
	if !ok {
		return "", false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Text(), true
}

// Len reports how many sessions are currently live.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.entries)
}
