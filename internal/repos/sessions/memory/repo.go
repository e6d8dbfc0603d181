package sessions

import (
	"sync"

	"github.com/fastprodman/arcadegate/internal/repos/sessions"
)

var _ sessions.Sessions = (*sessionsRepo)(nil)

type sessionsRepo struct {
	mu       sync.Mutex
	sessions map[string]*sessions.Session
}

func New() *sessionsRepo {
	return &sessionsRepo{sessions: make(map[string]*sessions.Session)}
}

func (r *sessionsRepo) Insert(s sessions.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; ok {
		return sessions.ErrDuplicateID
	}

	r.sessions[s.ID] = &s

	return nil
}

func (r *sessionsRepo) Get(id string) (sessions.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return sessions.Session{}, sessions.ErrSessionNotFound
	}

	return *s, nil
}

func (r *sessionsRepo) MarkUsed(id string) (sessions.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return sessions.Session{}, sessions.ErrSessionNotFound
	}

	if s.Used {
		return sessions.Session{}, sessions.ErrAlreadyUsed
	}

	before := *s
	s.Used = true

	return before, nil
}

func (r *sessionsRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}
