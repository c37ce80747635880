package app

import (
	"quizrush-game-service/internal/domain"
)

// AnswerView is an answer with the correct flag stripped; clients learn the
// correct key only from the reveal.
type AnswerView struct {
	Key  domain.AnswerKey `json:"key"`
	Text string           `json:"text"`
}

// QuestionView is the client-facing shape of the current question.
type QuestionView struct {
	ID      string       `json:"id"`
	Text    string       `json:"question"`
	Answers []AnswerView `json:"answers"`
}

// Snapshot is a consistent view of a game taken under its lock.
type Snapshot struct {
	InstanceID     string                      `json:"instanceId"`
	Phase          domain.Phase                `json:"phase"`
	Index          int                         `json:"index"`
	Question       *QuestionView               `json:"question,omitempty"`
	Selected       domain.AnswerKey            `json:"selected,omitempty"`
	CorrectKey     domain.AnswerKey            `json:"correctKey,omitempty"`
	Removed        []domain.AnswerKey          `json:"removed,omitempty"`
	AudienceVotes  map[domain.AnswerKey]int    `json:"audienceVotes,omitempty"`
	FirstAttempt   domain.AnswerKey            `json:"firstAttempt,omitempty"`
	SecondAttempt  domain.AnswerKey            `json:"secondAttempt,omitempty"`
	DoubleActive   bool                        `json:"doubleActive,omitempty"`
	LifelineUses   map[domain.LifelineType]int `json:"lifelineUses"`
	SwapUsed       bool                        `json:"swapUsed"`
	CorrectAnswers int                         `json:"correctAnswers"`
	CoinsEarned    int64                       `json:"coinsEarned"`
	Wallet         domain.Wallet               `json:"wallet"`
	Results        []domain.AnswerResult       `json:"results,omitempty"`
	Credits        map[string]CreditState      `json:"credits,omitempty"`
	Banner         string                      `json:"banner,omitempty"`
}

func (g *Game) snapshotLocked() Snapshot {
	snap := Snapshot{
		InstanceID:     g.instanceID,
		Phase:          g.phase,
		Index:          g.index,
		Selected:       g.selected,
		FirstAttempt:   g.lifelines.firstAttempt,
		SecondAttempt:  g.lifelines.secondAttempt,
		DoubleActive:   g.lifelines.doubleActive,
		SwapUsed:       g.swapUsed,
		CorrectAnswers: g.correctAnswers,
		CoinsEarned:    g.coinsEarned,
		Wallet:         g.wallet,
		Banner:         g.banner,
		LifelineUses:   make(map[domain.LifelineType]int, len(g.lifelines.uses)),
	}
	for k, v := range g.lifelines.uses {
		snap.LifelineUses[k] = v
	}
	if len(g.lifelines.removed) > 0 {
		snap.Removed = append([]domain.AnswerKey(nil), g.lifelines.removed...)
	}
	if len(g.lifelines.votes) > 0 {
		snap.AudienceVotes = make(map[domain.AnswerKey]int, len(g.lifelines.votes))
		for k, v := range g.lifelines.votes {
			snap.AudienceVotes[k] = v
		}
	}
	if len(g.credits) > 0 {
		snap.Credits = make(map[string]CreditState, len(g.credits))
		for k, v := range g.credits {
			snap.Credits[k] = v
		}
	}

	if g.index < len(g.questions) {
		q := g.questions[g.index]
		view := QuestionView{ID: q.ID, Text: q.Text}
		for _, a := range q.Answers {
			view.Answers = append(view.Answers, AnswerView{Key: a.Key, Text: a.Text})
		}
		snap.Question = &view
		switch g.phase {
		case domain.PhaseRevealing, domain.PhaseRescuePrompt, domain.PhaseFinished, domain.PhaseOutOfLives:
			snap.CorrectKey = q.CorrectKey()
		}
	}
	if g.phase == domain.PhaseFinished || g.phase == domain.PhaseOutOfLives {
		snap.Results = append([]domain.AnswerResult(nil), g.answerResults...)
	}
	return snap
}
