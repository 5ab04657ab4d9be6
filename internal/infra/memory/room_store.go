package memory

import (
	"sync"
	"time"

	"quizcine-server/internal/app"
)

// RoomStore is the in-memory implementation of app.RoomRepository. With a
// zero TTL rooms live for the process lifetime; a positive TTL enables
// eviction of idle rooms via Reap.
type RoomStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu    sync.RWMutex
	rooms map[string]*app.Room
}

func NewRoomStore() *RoomStore {
	return NewRoomStoreWithTTL(0, time.Now)
}

// NewRoomStoreWithTTL allows idle-room eviction with an injected clock for
// deterministic tests.
func NewRoomStoreWithTTL(ttl time.Duration, clock func() time.Time) *RoomStore {
	return &RoomStore{
		ttl:   ttl,
		clock: clock,
		rooms: make(map[string]*app.Room),
	}
}

func (s *RoomStore) GetOrCreate(code string) *app.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[code]; ok {
		return room
	}
	room := app.NewRoom(code)
	room.Touch(s.clock())
	s.rooms[code] = room
	return room
}

func (s *RoomStore) Get(code string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	return room, ok
}

// Len reports how many rooms currently exist.
func (s *RoomStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Reap removes rooms idle longer than the configured TTL and returns how many
// were evicted. A zero TTL makes it a no-op.
func (s *RoomStore) Reap() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.clock().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for code, room := range s.rooms {
		if room.LastActive().Before(cutoff) {
			delete(s.rooms, code)
			evicted++
		}
	}
	return evicted
}

// StartReaper reaps periodically until stop is closed.
func (s *RoomStore) StartReaper(stop <-chan struct{}) {
	if s.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Reap()
			case <-stop:
				return
			}
		}
	}()
}
