package memory

import (
	"context"
	"sync"

	"quizrush-game-service/internal/domain"
)

// StaticQuestionSource serves question sets from an in-memory pool keyed by
// language (useful for tests/demos). Fetches are idempotent and side-effect
// free; the same set comes back every time.
type StaticQuestionSource struct {
	mu   sync.RWMutex
	sets map[string]domain.QuestionSet
}

func NewStaticQuestionSource(sets map[string]domain.QuestionSet) *StaticQuestionSource {
	return &StaticQuestionSource{sets: sets}
}

func (s *StaticQuestionSource) FetchQuestionSet(_ context.Context, lang string) (domain.QuestionSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if set, ok := s.sets[lang]; ok {
		return cloneSet(set), nil
	}
	return domain.QuestionSet{}, domain.ErrQuestionSetInvalid
}

// cloneSet guards the pool against in-game mutation (question swap replaces
// entries in the caller's slice).
func cloneSet(set domain.QuestionSet) domain.QuestionSet {
	return domain.QuestionSet{
		Questions: append([]domain.Question(nil), set.Questions...),
		Spares:    append([]domain.Question(nil), set.Spares...),
	}
}
