package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quizrush-game-service/internal/app"
)

// GameStore is a Redis-aware implementation of app.GameRepository.
// Notes:
//   - Game objects stay in a local in-memory map; the state machine's lock
//     discipline relies on in-process pointers.
//   - Redis marks per-user session liveness so another instance (or an ops
//     dashboard) can see who is mid-game, and stale markers expire on TTL.
type GameStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	games  map[string]*app.Game
}

func NewGameStore(client *redis.Client, ttl time.Duration) *GameStore {
	return &GameStore{
		client: client,
		ttl:    ttl,
		games:  make(map[string]*app.Game),
	}
}

func (s *GameStore) Put(userID string, g *app.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[userID] = g
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(userID), "1", s.ttl).Err()
}

func (s *GameStore) Get(userID string) (*app.Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[userID]
	return g, ok
}

func (s *GameStore) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, userID)
	_ = s.client.Del(context.Background(), s.key(userID)).Err()
}

func (s *GameStore) key(userID string) string {
	return "game:session:" + userID
}
