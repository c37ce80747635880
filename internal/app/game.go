package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"quizrush-game-service/internal/domain"
)

// Game is one playthrough for one user. Every public operation is
// transactional against the current state under the mutex, so interleaved
// timer callbacks, swipes and background reconciliation never observe a
// half-applied transition.
type Game struct {
	svc        *GameService
	userID     string
	instanceID string
	lang       string
	rules      Rules
	clock      func() time.Time
	rnd        *rand.Rand

	mu            sync.Mutex
	phase         domain.Phase
	questions     []domain.Question
	spares        []domain.Question
	index         int
	selected      domain.AnswerKey
	questionStart time.Time

	timerSeq int
	timer    *time.Timer

	correctAnswers int
	responseTimes  []time.Duration
	answerResults  []domain.AnswerResult
	coinsEarned    int64
	wallet         domain.Wallet
	credits        map[string]CreditState

	lifelines  lifelineState
	swapUsed   bool
	prefetched bool
	banner     string

	tail      sync.WaitGroup
	onWallet  func(domain.Wallet)
	onTimeout func(Snapshot)
}

func newGame(svc *GameService, userID, instanceID, lang string, set domain.QuestionSet, wallet domain.Wallet) *Game {
	return &Game{
		svc:        svc,
		userID:     userID,
		instanceID: instanceID,
		lang:       lang,
		rules:      svc.rules,
		clock:      svc.clock,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		phase:      domain.PhaseIdle,
		questions:  set.Questions[:svc.rules.QuestionCount],
		spares:     append([]domain.Question(nil), set.Spares...),
		credits:    make(map[string]CreditState),
		wallet:     wallet,
		lifelines:  newLifelineState(),
	}
}

// InProgress reports whether the game is still playable.
func (g *Game) InProgress() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.phase {
	case domain.PhaseFinished, domain.PhaseOutOfLives, domain.PhaseIdle:
		return false
	}
	return true
}

// OnWalletUpdate registers the callback invoked after server reconciliation,
// the in-process analog of a cross-tab wallet broadcast.
func (g *Game) OnWalletUpdate(fn func(domain.Wallet)) {
	g.mu.Lock()
	g.onWallet = fn
	g.mu.Unlock()
}

// WaitSettled blocks until in-flight async tails (credits, help logs) settle
// or the cooldown elapses. The transport uses it to serialize swipes.
func (g *Game) WaitSettled(cooldown time.Duration) bool {
	done := make(chan struct{})
	go func() {
		g.tail.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(cooldown):
		return false
	}
}

// SelectAnswer registers a player selection while answering. With the double
// answer help active, a first wrong pick keeps the question open for one more
// attempt; any other selection transitions to the reveal.
func (g *Game) SelectAnswer(ctx context.Context, key domain.AnswerKey) (Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != domain.PhaseAnswering || g.selected != "" {
		// Late taps racing the reveal are no-ops, not errors.
		return g.snapshotLocked(), nil
	}
	if key != domain.AnswerA && key != domain.AnswerB && key != domain.AnswerC {
		return g.snapshotLocked(), domain.ErrInvalidAnswerKey
	}
	if g.lifelines.isRemoved(key) {
		return g.snapshotLocked(), domain.ErrAnswerRemoved
	}

	question := g.questions[g.index]
	correct := key == question.CorrectKey()
	elapsed := g.clock().Sub(g.questionStart)

	if g.lifelines.doubleActive && g.lifelines.firstAttempt == "" && !correct {
		g.lifelines.firstAttempt = key
		return g.snapshotLocked(), nil
	}
	if g.lifelines.doubleActive && g.lifelines.firstAttempt != "" {
		g.lifelines.secondAttempt = key
	}

	g.selected = key
	g.revealLocked(correct, key, elapsed)
	return g.snapshotLocked(), nil
}

// Timeout records countdown expiry as a distinguished wrong outcome.
func (g *Game) Timeout() (Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.timeoutLocked()
	return g.snapshotLocked(), nil
}

// timeoutFromTimer is the AfterFunc entry point; seq guards stale timers
// so a tick racing a just-registered answer loses and no-ops.
func (g *Game) timeoutFromTimer(seq int) {
	g.mu.Lock()
	if seq != g.timerSeq {
		g.mu.Unlock()
		return
	}
	g.timeoutLocked()
	snap := g.snapshotLocked()
	fn := g.onTimeout
	g.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

// OnTimeout registers the callback pushed to the client when the countdown
// expires server-side.
func (g *Game) OnTimeout(fn func(Snapshot)) {
	g.mu.Lock()
	g.onTimeout = fn
	g.mu.Unlock()
}

func (g *Game) timeoutLocked() {
	if g.phase != domain.PhaseAnswering || g.selected != "" {
		return
	}
	g.selected = domain.TimeoutSentinel
	g.revealLocked(false, domain.TimeoutSentinel, g.rules.QuestionTimer)
}

// revealLocked finalizes the current question: records the result, credits a
// correct answer optimistically and decides whether a wrong outcome needs the
// rescue prompt.
func (g *Game) revealLocked(correct bool, selected domain.AnswerKey, rt time.Duration) {
	g.invalidateTimerLocked()
	g.phase = domain.PhaseRevealing

	var award int64
	if correct {
		award = g.rules.CoinsPerCorrect
		g.correctAnswers++
	}
	g.responseTimes = append(g.responseTimes, rt)
	g.answerResults = append(g.answerResults, domain.AnswerResult{
		QuestionID:   g.questions[g.index].ID,
		Selected:     selected,
		Correct:      correct,
		ResponseTime: rt,
		CoinsAwarded: award,
	})

	if correct {
		g.creditCorrectAnswerLocked(g.index)
		return
	}
	if !g.canContinueLocked() {
		g.phase = domain.PhaseRescuePrompt
	}
}

// Advance moves to the next question, or to Finished past the last one. After
// a wrong or timed-out answer it charges the continuation cost first; a debit
// failure drops into the rescue prompt instead of advancing.
func (g *Game) Advance(ctx context.Context) (Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != domain.PhaseRevealing || g.selected == "" {
		// Double swipes and swipes racing a timeout land here as no-ops.
		return g.snapshotLocked(), nil
	}

	last := g.answerResults[len(g.answerResults)-1]
	if !last.Correct {
		if err := g.payContinuationLocked(ctx); err != nil {
			g.phase = domain.PhaseRescuePrompt
			return g.snapshotLocked(), nil
		}
	}
	g.advanceToNextLocked()
	return g.snapshotLocked(), nil
}

// Rescue pays the continuation cost from the rescue prompt and resumes play.
func (g *Game) Rescue(ctx context.Context) (Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != domain.PhaseRescuePrompt {
		return g.snapshotLocked(), nil
	}
	if err := g.payContinuationLocked(ctx); err != nil {
		return g.snapshotLocked(), err
	}
	g.advanceToNextLocked()
	return g.snapshotLocked(), nil
}

// DismissRescue declines the rescue offer; the game ends with nothing
// credited for the failed question.
func (g *Game) DismissRescue() (Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != domain.PhaseRescuePrompt {
		return g.snapshotLocked(), nil
	}
	g.invalidateTimerLocked()
	g.phase = domain.PhaseOutOfLives
	return g.snapshotLocked(), nil
}

// UseQuestionSwap replaces the current question from the spare tail, at most
// once per game, without consuming a life. The gold cost escalates with the
// question index and is debited before the swap takes effect.
func (g *Game) UseQuestionSwap(ctx context.Context) (Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != domain.PhaseAnswering || g.selected != "" {
		return g.snapshotLocked(), nil
	}
	if g.swapUsed {
		return g.snapshotLocked(), domain.ErrSwapUsed
	}
	if len(g.spares) == 0 {
		return g.snapshotLocked(), domain.ErrNoSpareQuestion
	}

	cost := g.rules.SwapBaseCost + g.rules.SwapCostPerIndex*int64(g.index)
	key := fmt.Sprintf("%s-q%d-swap", g.instanceID, g.index)
	if err := g.debitGoldLocked(ctx, cost, key, "question_swap"); err != nil {
		return g.snapshotLocked(), err
	}

	g.swapUsed = true
	g.questions[g.index] = g.spares[0]
	g.spares = g.spares[1:]
	g.lifelines.resetQuestion()
	g.beginQuestionLocked()
	return g.snapshotLocked(), nil
}

func (g *Game) advanceToNextLocked() {
	g.index++
	if g.index >= g.rules.QuestionCount {
		g.invalidateTimerLocked()
		g.phase = domain.PhaseFinished
		return
	}
	g.selected = ""
	g.banner = ""
	g.lifelines.resetQuestion()
	g.beginQuestionLocked()

	// Checkpoint prefetch fires exactly once per game instance; any later
	// revisit of the index (rescue flows included) must not re-trigger it.
	if g.index == g.rules.QuestionCount-1 && !g.prefetched {
		g.prefetched = true
		g.svc.prefetch.Trigger(g.lang)
	}
}

func (g *Game) beginQuestionLocked() {
	g.phase = domain.PhaseAnswering
	g.selected = ""
	g.questionStart = g.clock()
	g.armTimerLocked()
}

func (g *Game) armTimerLocked() {
	g.invalidateTimerLocked()
	if g.rules.QuestionTimer <= 0 {
		return
	}
	seq := g.timerSeq
	g.timer = time.AfterFunc(g.rules.QuestionTimer, func() {
		g.timeoutFromTimer(seq)
	})
}

// invalidateTimerLocked bumps the sequence so any already-fired AfterFunc
// waiting on the mutex becomes a no-op.
func (g *Game) invalidateTimerLocked() {
	g.timerSeq++
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (g *Game) stopTimer() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invalidateTimerLocked()
}

func (g *Game) canContinueLocked() bool {
	return g.wallet.Lives > 0 || g.wallet.Coins >= g.rules.RescueGoldCost
}

// payContinuationLocked spends a life when one is available, falling back to
// gold. Fail closed: no resource, no advance.
func (g *Game) payContinuationLocked(ctx context.Context) error {
	key := fmt.Sprintf("%s-q%d-continue", g.instanceID, g.index)
	if g.wallet.Lives > 0 {
		entry := domain.LedgerEntry{
			IdempotencyKey: key,
			UserID:         g.userID,
			DeltaLives:     -1,
			Source:         "continue_life",
			CreatedAt:      g.clock(),
		}
		_, wallet, err := g.svc.ledger.Credit(ctx, entry)
		if err != nil {
			return err
		}
		g.wallet = wallet
		return nil
	}
	return g.debitGoldLocked(ctx, g.rules.RescueGoldCost, key, "continue_gold")
}

// debitGoldLocked charges gold synchronously and atomically with whatever
// activation follows it; the caller applies its effect only on nil error.
func (g *Game) debitGoldLocked(ctx context.Context, amount int64, key, source string) error {
	if g.wallet.Coins < amount {
		return domain.ErrInsufficientGold
	}
	entry := domain.LedgerEntry{
		IdempotencyKey: key,
		UserID:         g.userID,
		DeltaCoins:     -amount,
		Source:         source,
		CreatedAt:      g.clock(),
	}
	_, wallet, err := g.svc.ledger.Credit(ctx, entry)
	if err != nil {
		return err
	}
	g.wallet = wallet
	return nil
}

// reconcileWallet merges server truth after a background credit confirms.
func (g *Game) reconcileWallet(wallet domain.Wallet) {
	g.mu.Lock()
	g.wallet = wallet
	fn := g.onWallet
	g.mu.Unlock()
	if fn != nil {
		fn(wallet)
	}
}

func (g *Game) setCreditState(key string, state CreditState) {
	g.mu.Lock()
	g.credits[key] = state
	if state == CreditFailed {
		g.banner = "reward pending, will retry"
	}
	g.mu.Unlock()
}
