package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quizcine-server/internal/app"
)

// RoomStore is a Redis-aware implementation of app.RoomRepository.
// Notes:
//   - Rooms themselves stay in a local in-memory map so the lifecycle and
//     scoring engine keep their in-process locking semantics.
//   - Redis holds per-room liveness markers (and could be extended to route
//     cross-instance pub/sub for multi-node fan-out).
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	clock  func() time.Time

	mu    sync.RWMutex
	rooms map[string]*app.Room
}

func NewRoomStore(client *redis.Client, ttl time.Duration) *RoomStore {
	return &RoomStore{
		client: client,
		ttl:    ttl,
		clock:  time.Now,
		rooms:  make(map[string]*app.Room),
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
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(code), "1", s.ttl).Err()
	return room
}

func (s *RoomStore) Get(code string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	return room, ok
}

// Reap evicts rooms idle longer than the TTL, clearing their liveness keys.
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
			_ = s.client.Del(context.Background(), s.key(code)).Err()
			evicted++
		}
	}
	return evicted
}

func (s *RoomStore) key(code string) string {
	return "room:live:" + code
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
