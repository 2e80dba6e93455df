package session

import (
	"context"

	cmap "github.com/orcaman/concurrent-map"
	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"
)

// Manager keeps the open sessions of this process in memory.
type Manager struct {
	service  WalletService
	sessions cmap.ConcurrentMap
}

func NewManager(service WalletService) *Manager {
	return &Manager{
		service:  service,
		sessions: cmap.New(),
	}
}

// Open creates a session and connects it with credential. The session is
// registered even if connecting failed, its state carries the error.
func (m *Manager) Open(ctx context.Context, credential string) (*Session, error) {
	s := New(uuid.NewV4().String(), m.service)
	m.sessions.Set(s.ID, s)
	log.Debugf("[sessions] opened %s (%d open)", s.ID, m.sessions.Count())
	return s, s.Connect(ctx, credential)
}

func (m *Manager) Get(id string) (*Session, bool) {
	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Close forgets a session and the api key it holds.
func (m *Manager) Close(id string) bool {
	s, ok := m.Get(id)
	if !ok {
		return false
	}
	m.sessions.Remove(id)
	s.Close()
	log.Debugf("[sessions] closed %s (%d open)", id, m.sessions.Count())
	return true
}

func (m *Manager) Count() int {
	return m.sessions.Count()
}
