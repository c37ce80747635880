package app

import (
	"context"
	"fmt"

	"quizrush-game-service/internal/domain"
)

// lifelineState carries the game-scoped usage counters and the per-question
// transient effects. Counters cap at two activations per type per game; the
// transients are wiped on every advance or swap.
type lifelineState struct {
	uses map[domain.LifelineType]int

	removed       []domain.AnswerKey
	votes         map[domain.AnswerKey]int
	doubleActive  bool
	firstAttempt  domain.AnswerKey
	secondAttempt domain.AnswerKey
}

func newLifelineState() lifelineState {
	return lifelineState{uses: make(map[domain.LifelineType]int)}
}

func (l *lifelineState) resetQuestion() {
	l.removed = nil
	l.votes = nil
	l.doubleActive = false
	l.firstAttempt = ""
	l.secondAttempt = ""
}

func (l *lifelineState) isRemoved(key domain.AnswerKey) bool {
	for _, r := range l.removed {
		if r == key {
			return true
		}
	}
	return false
}

const maxLifelineUses = 2

// UseLifeline activates a help on the current question. The first activation
// of a type is free; the second is charged before the effect applies, and a
// failed debit leaves the lifeline inactive. A third attempt is rejected
// with no state change.
func (g *Game) UseLifeline(ctx context.Context, help domain.LifelineType) (Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != domain.PhaseAnswering || g.selected != "" {
		return g.snapshotLocked(), nil
	}

	used := g.lifelines.uses[help]
	if used >= maxLifelineUses {
		return g.snapshotLocked(), domain.ErrLifelineExhausted
	}

	switch help {
	case domain.LifelineFiftyFifty:
		if g.nextRemovableLocked() == "" {
			return g.snapshotLocked(), nil
		}
	case domain.LifelineDoubleAnswer:
		if g.lifelines.doubleActive {
			return g.snapshotLocked(), nil
		}
	case domain.LifelineAudience:
	default:
		return g.snapshotLocked(), nil
	}

	var cost int64
	if used == 1 {
		cost = g.rules.LifelineSecondCost
		key := fmt.Sprintf("%s-%s-use%d", g.instanceID, help, used+1)
		if err := g.debitGoldLocked(ctx, cost, key, "lifeline_"+string(help)); err != nil {
			return g.snapshotLocked(), err
		}
	}

	g.lifelines.uses[help] = used + 1
	switch help {
	case domain.LifelineFiftyFifty:
		g.applyFiftyFiftyLocked()
	case domain.LifelineDoubleAnswer:
		g.lifelines.doubleActive = true
	case domain.LifelineAudience:
		g.applyAudienceLocked()
	}
	g.logHelpUsage(help, g.index, cost)
	return g.snapshotLocked(), nil
}

// nextRemovableLocked returns the first incorrect answer key in declared
// order that fifty-fifty has not removed yet. Deterministic on purpose.
func (g *Game) nextRemovableLocked() domain.AnswerKey {
	for _, a := range g.questions[g.index].Answers {
		if a.Correct || g.lifelines.isRemoved(a.Key) {
			continue
		}
		return a.Key
	}
	return ""
}

func (g *Game) applyFiftyFiftyLocked() {
	key := g.nextRemovableLocked()
	if key == "" {
		return
	}
	g.lifelines.removed = append(g.lifelines.removed, key)
}

// applyAudienceLocked assigns a weighted distribution across the three
// answers. The correct answer gets at least the configured bias; the three
// shares always sum to exactly 100.
func (g *Game) applyAudienceLocked() {
	question := g.questions[g.index]
	correct := question.CorrectKey()

	bias := g.rules.AudienceBias
	if bias < 34 {
		bias = 34
	}
	if bias > 90 {
		bias = 90
	}
	correctShare := bias + g.rnd.Intn(91-bias)
	rest := 100 - correctShare
	split := g.rnd.Intn(rest + 1)

	votes := make(map[domain.AnswerKey]int, len(question.Answers))
	assigned := []int{split, rest - split}
	i := 0
	for _, a := range question.Answers {
		if a.Key == correct {
			votes[a.Key] = correctShare
			continue
		}
		votes[a.Key] = assigned[i]
		i++
	}
	g.lifelines.votes = votes
}
