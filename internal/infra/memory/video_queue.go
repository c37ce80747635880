package memory

import (
	"sync"

	"quizrush-game-service/internal/domain"
)

// VideoQueue is the in-memory preload buffer of sponsor videos. Take never
// blocks: it either hands out n videos or reports the queue is short.
type VideoQueue struct {
	mu     sync.Mutex
	videos []domain.RewardVideo
}

func NewVideoQueue(preloaded ...domain.RewardVideo) *VideoQueue {
	return &VideoQueue{videos: preloaded}
}

// Push appends freshly preloaded videos.
func (q *VideoQueue) Push(videos ...domain.RewardVideo) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.videos = append(q.videos, videos...)
}

func (q *VideoQueue) Take(n int) ([]domain.RewardVideo, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n <= 0 || len(q.videos) < n {
		return nil, false
	}
	taken := append([]domain.RewardVideo(nil), q.videos[:n]...)
	q.videos = q.videos[n:]
	return taken, true
}

// Len reports how many videos are buffered.
func (q *VideoQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.videos)
}
