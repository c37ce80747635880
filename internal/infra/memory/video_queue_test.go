package memory

import (
	"testing"

	"quizrush-game-service/internal/domain"
)

func TestVideoQueueTakeFailsFastWhenShort(t *testing.T) {
	queue := NewVideoQueue(domain.RewardVideo{ID: "v1"})

	if _, ok := queue.Take(2); ok {
		t.Fatalf("expected short queue to fail fast")
	}
	if queue.Len() != 1 {
		t.Fatalf("failed take must not consume, len=%d", queue.Len())
	}

	videos, ok := queue.Take(1)
	if !ok || len(videos) != 1 || videos[0].ID != "v1" {
		t.Fatalf("unexpected take: %v %v", videos, ok)
	}
	if queue.Len() != 0 {
		t.Fatalf("expected empty queue, len=%d", queue.Len())
	}
}
