package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"quizrush-game-service/internal/domain"
)

// HelpUsageLog appends lifeline activations to a Redis stream, one stream
// per user. Writes are best-effort from the caller's point of view; the
// game engine already isolates failures.
type HelpUsageLog struct {
	client *redis.Client
	maxLen int64
}

func NewHelpUsageLog(client *redis.Client) *HelpUsageLog {
	return &HelpUsageLog{client: client, maxLen: 256}
}

func (l *HelpUsageLog) LogHelpUsage(ctx context.Context, userID string, help domain.LifelineType, questionIndex int, cost int64) error {
	return l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: l.key(userID),
		MaxLen: l.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"help":  string(help),
			"index": questionIndex,
			"cost":  cost,
			"at":    time.Now().UnixMilli(),
		},
	}).Err()
}

func (l *HelpUsageLog) key(userID string) string {
	return "help:usage:" + userID
}
