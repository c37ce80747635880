package app

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/singleflight"

	"quizrush-game-service/internal/domain"
)

// PrefetchCache is the single-slot, last-write-wins cache of the next game's
// question set. The checkpoint trigger is non-blocking; a restart consumes
// the slot and skips the network entirely. Singleflight collapses a prefetch
// racing a restart fetch into one upstream call.
type PrefetchCache struct {
	source QuestionSource
	sf     singleflight.Group

	mu   sync.Mutex
	slot *domain.QuestionSet
}

func NewPrefetchCache(source QuestionSource) *PrefetchCache {
	return &PrefetchCache{source: source}
}

// Trigger fires a background fetch and stores the result. Failures are
// logged and dropped; the restart path falls back to a live fetch.
func (p *PrefetchCache) Trigger(lang string) {
	detach(func(ctx context.Context) {
		set, err, _ := p.fetchShared(ctx, lang)
		if err != nil {
			log.Printf("next game prefetch failed: %v", err)
			return
		}
		p.mu.Lock()
		p.slot = &set
		p.mu.Unlock()
	})
}

// Consume takes and clears the slot.
func (p *PrefetchCache) Consume() (domain.QuestionSet, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.slot == nil {
		return domain.QuestionSet{}, false
	}
	set := *p.slot
	p.slot = nil
	return set, true
}

// ConsumeOrFetch serves the prefetched set when populated, otherwise fetches
// live, sharing in-flight work with any concurrent prefetch.
func (p *PrefetchCache) ConsumeOrFetch(ctx context.Context, lang string) (domain.QuestionSet, error) {
	if set, ok := p.Consume(); ok {
		return set, nil
	}
	set, err, _ := p.fetchShared(ctx, lang)
	return set, err
}

func (p *PrefetchCache) fetchShared(ctx context.Context, lang string) (domain.QuestionSet, error, bool) {
	result, err, shared := p.sf.Do("next-game:"+lang, func() (interface{}, error) {
		return p.source.FetchQuestionSet(ctx, lang)
	})
	if err != nil {
		return domain.QuestionSet{}, err, shared
	}
	return result.(domain.QuestionSet), nil, shared
}
