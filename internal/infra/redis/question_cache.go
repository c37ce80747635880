package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizrush-game-service/internal/domain"
)

// QuestionUpstream is the slow path behind the cache (document DB, content
// pipeline HTTP client, ...).
type QuestionUpstream interface {
	FetchQuestionSet(ctx context.Context, lang string) (domain.QuestionSet, error)
}

// QuestionCache caches fetched question sets in Redis per language and falls
// back to the upstream source on a miss.
// Sets are stored as: SET questions:{lang} {json} EX {ttl}
type QuestionCache struct {
	client   *redis.Client
	upstream QuestionUpstream
	ttl      time.Duration
	sf       singleflight.Group
	rnd      *rand.Rand
}

func NewQuestionCache(client *redis.Client, upstream QuestionUpstream, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client:   client,
		upstream: upstream,
		ttl:      ttl,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) FetchQuestionSet(ctx context.Context, lang string) (domain.QuestionSet, error) {
	key := c.key(lang)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil && len(raw) > 0 {
		var set domain.QuestionSet
		if err := json.Unmarshal(raw, &set); err == nil {
			return set, nil
		}
	}

	result, err, _ := c.sf.Do(lang, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil && len(raw) > 0 {
			var set domain.QuestionSet
			if err := json.Unmarshal(raw, &set); err == nil {
				return set, nil
			}
		}

		set, err := c.upstream.FetchQuestionSet(ctx, lang)
		if err != nil {
			return domain.QuestionSet{}, err
		}

		if raw, err := json.Marshal(set); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

func (c *QuestionCache) key(lang string) string {
	return "questions:" + lang
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
