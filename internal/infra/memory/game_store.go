package memory

import (
	"sync"

	"quizrush-game-service/internal/app"
)

// GameStore is an in-memory implementation of app.GameRepository, one active
// game per user.
type GameStore struct {
	mu    sync.RWMutex
	games map[string]*app.Game
}

func NewGameStore() *GameStore {
	return &GameStore{games: make(map[string]*app.Game)}
}

func (s *GameStore) Put(userID string, g *app.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[userID] = g
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
}
