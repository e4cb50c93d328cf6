package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"heatpulse/api/models"
)

// MemoryEventStore keeps events in process memory. Appends hold the write lock
// for the whole batch, so readers never observe half a batch.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events []models.Event
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{}
}

func (s *MemoryEventStore) Append(_ context.Context, events []models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *MemoryEventStore) Scan(ctx context.Context, filter EventFilter, fn func(models.Event) error) error {
	s.mu.RLock()
	matched := make([]models.Event, 0, len(s.events))
	for i := range s.events {
		if filter.Match(&s.events[i]) {
			matched = append(matched, s.events[i])
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})
	for _, e := range matched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of stored events.
func (s *MemoryEventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]models.Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]models.Session)}
}

func (s *MemorySessionStore) CreateSession(_ context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.SessionID] = session
	return nil
}

func (s *MemorySessionStore) GetSession(_ context.Context, sessionID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &session, nil
}

func (s *MemorySessionStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, session := range s.sessions {
		if session.ExpiresAt.Before(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

type MemoryUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]models.User // by email
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]models.User)}
}

func (s *MemoryUserStore) CreateUser(_ context.Context, email string, hashedPassword []byte) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(email)
	if _, ok := s.users[email]; ok {
		return nil, ErrDuplicate
	}
	s.nextID++
	now := time.Now().UTC()
	user := models.User{ID: s.nextID, Email: email, HashedPassword: hashedPassword, CreatedAt: now, UpdatedAt: now}
	s.users[email] = user
	return &user, nil
}

func (s *MemoryUserStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (s *MemoryUserStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == id {
			return &user, nil
		}
	}
	return nil, ErrNotFound
}

type MemorySiteStore struct {
	mu    sync.Mutex
	sites []models.Site
}

func NewMemorySiteStore() *MemorySiteStore {
	return &MemorySiteStore{}
}

func (s *MemorySiteStore) CreateSite(_ context.Context, site models.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sites {
		if existing.SiteID == site.SiteID || existing.Domain == site.Domain {
			return ErrDuplicate
		}
	}
	s.sites = append(s.sites, site)
	return nil
}

func (s *MemorySiteStore) ListSitesByOwner(_ context.Context, ownerID int64) ([]models.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Site{}
	for _, site := range s.sites {
		if site.OwnerID == ownerID {
			out = append(out, site)
		}
	}
	return out, nil
}
