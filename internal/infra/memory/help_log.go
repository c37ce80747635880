package memory

import (
	"context"
	"sync"
	"time"

	"quizrush-game-service/internal/domain"
)

// HelpUsageEntry is one recorded lifeline activation.
type HelpUsageEntry struct {
	UserID        string
	Help          domain.LifelineType
	QuestionIndex int
	Cost          int64
	At            time.Time
}

// HelpUsageLog keeps lifeline activations in memory. Implements
// app.HelpUsageLog; callers treat it as fire-and-forget.
type HelpUsageLog struct {
	mu      sync.Mutex
	entries []HelpUsageEntry
}

func NewHelpUsageLog() *HelpUsageLog {
	return &HelpUsageLog{}
}

func (l *HelpUsageLog) LogHelpUsage(_ context.Context, userID string, help domain.LifelineType, questionIndex int, cost int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, HelpUsageEntry{
		UserID:        userID,
		Help:          help,
		QuestionIndex: questionIndex,
		Cost:          cost,
		At:            time.Now(),
	})
	return nil
}

// Entries returns a copy of everything logged so far.
func (l *HelpUsageLog) Entries() []HelpUsageEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]HelpUsageEntry(nil), l.entries...)
}
