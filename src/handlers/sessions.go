package handlers

import (
	"sync"

	"github.com/google/uuid"
)

const sessionBuffer = 16

type session struct {
	out  chan []byte
	done chan struct{}
}

// Sessions tracks open streaming connections by connection id. Responses
// to messages posted for a connection are delivered through its session.
type Sessions struct {
	mu    sync.RWMutex
	conns map[string]*session
}

func NewSessions() *Sessions {
	return &Sessions{conns: make(map[string]*session)}
}

func (s *Sessions) open() (string, *session) {
	id := uuid.NewString()
	sess := &session{out: make(chan []byte, sessionBuffer), done: make(chan struct{})}

	s.mu.Lock()
	s.conns[id] = sess
	s.mu.Unlock()
	return id, sess
}

func (s *Sessions) close(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.conns[id]; ok {
		close(sess.done)
		delete(s.conns, id)
	}
}

func (s *Sessions) exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.conns[id]
	return ok
}

// send queues msg for the connection. It reports false when the
// connection is gone.
func (s *Sessions) send(id string, msg []byte) bool {
	s.mu.RLock()
	sess, ok := s.conns[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	select {
	case sess.out <- msg:
		return true
	case <-sess.done:
		return false
	}
}

func (s *Sessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}
