package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"quizrush-game-service/internal/config"
	"quizrush-game-service/internal/domain"
)

// QuestionSource fetches question content (from cache/backing store).
// A fetch is idempotent and side-effect free.
type QuestionSource interface {
	FetchQuestionSet(ctx context.Context, lang string) (domain.QuestionSet, error)
}

// WalletLedger is the server-owned append-only store of signed deltas.
// Credit applies each distinct idempotency key at most once and returns the
// same result on replay; a debit that would drive a balance negative fails
// with domain.ErrInsufficientGold / domain.ErrOutOfLives.
type WalletLedger interface {
	Credit(ctx context.Context, entry domain.LedgerEntry) (applied bool, wallet domain.Wallet, err error)
	Balance(ctx context.Context, userID string) (domain.Wallet, error)
}

// HelpUsageLog records lifeline activations. Calls are fire-and-forget:
// failures must never affect gameplay.
type HelpUsageLog interface {
	LogHelpUsage(ctx context.Context, userID string, help domain.LifelineType, questionIndex int, cost int64) error
}

// GameRepository abstracts how active game sessions are stored per user.
type GameRepository interface {
	Put(userID string, g *Game)
	Get(userID string) (*Game, bool)
	Delete(userID string)
}

// Rules are the resolved gameplay tunables.
type Rules struct {
	QuestionCount      int
	SpareCount         int
	QuestionTimer      time.Duration
	CoinsPerCorrect    int64
	StartReward        int64
	LifelineSecondCost int64
	SwapBaseCost       int64
	SwapCostPerIndex   int64
	RescueGoldCost     int64
	AudienceBias       int
	VideosPerSession   int
}

// DefaultRules returns the production defaults.
func DefaultRules() Rules {
	return Rules{
		QuestionCount:      10,
		SpareCount:         2,
		QuestionTimer:      10 * time.Second,
		CoinsPerCorrect:    10,
		StartReward:        5,
		LifelineSecondCost: 15,
		SwapBaseCost:       10,
		SwapCostPerIndex:   5,
		RescueGoldCost:     30,
		AudienceBias:       45,
		VideosPerSession:   1,
	}
}

// RulesFromConfig overlays non-zero config values on the defaults.
func RulesFromConfig(g config.Game) Rules {
	r := DefaultRules()
	if g.QuestionCount > 0 {
		r.QuestionCount = g.QuestionCount
	}
	if g.SpareCount > 0 {
		r.SpareCount = g.SpareCount
	}
	r.QuestionTimer = config.TTLDuration(g.QuestionTimer, r.QuestionTimer)
	if g.CoinsPerCorrect > 0 {
		r.CoinsPerCorrect = g.CoinsPerCorrect
	}
	if g.StartReward > 0 {
		r.StartReward = g.StartReward
	}
	if g.LifelineSecondCost > 0 {
		r.LifelineSecondCost = g.LifelineSecondCost
	}
	if g.SwapBaseCost > 0 {
		r.SwapBaseCost = g.SwapBaseCost
	}
	if g.SwapCostPerIndex > 0 {
		r.SwapCostPerIndex = g.SwapCostPerIndex
	}
	if g.RescueGoldCost > 0 {
		r.RescueGoldCost = g.RescueGoldCost
	}
	if g.AudienceBias > 0 {
		r.AudienceBias = g.AudienceBias
	}
	if g.VideosPerSession > 0 {
		r.VideosPerSession = g.VideosPerSession
	}
	return r
}

// GameService contains the game progression use cases.
type GameService struct {
	rules    Rules
	games    GameRepository
	source   QuestionSource
	ledger   WalletLedger
	helps    HelpUsageLog
	videos   *VideoSessionRegistry
	prefetch *PrefetchCache
	clock    func() time.Time
}

func NewGameService(rules Rules, games GameRepository, source QuestionSource, ledger WalletLedger, helps HelpUsageLog, videos *VideoSessionRegistry) *GameService {
	return &GameService{
		rules:    rules,
		games:    games,
		source:   source,
		ledger:   ledger,
		helps:    helps,
		videos:   videos,
		prefetch: NewPrefetchCache(source),
		clock:    time.Now,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *GameService) WithClock(now func() time.Time) *GameService {
	s.clock = now
	return s
}

// Prefetch exposes the single-slot next-game cache.
func (s *GameService) Prefetch() *PrefetchCache {
	return s.prefetch
}

// Videos exposes the reward video session registry.
func (s *GameService) Videos() *VideoSessionRegistry {
	return s.videos
}

// StartGame creates a game session for the user. instanceID is the
// client-generated token scoping every reward idempotency key of this
// playthrough. A question fetch failure is fatal: no session is created.
func (s *GameService) StartGame(ctx context.Context, userID, instanceID, lang string) (Snapshot, error) {
	if existing, ok := s.games.Get(userID); ok && existing.InProgress() {
		return Snapshot{}, domain.ErrGameInProgress
	}

	set, err := s.prefetch.ConsumeOrFetch(ctx, lang)
	if err != nil {
		return Snapshot{}, err
	}
	if err := validateSet(set, s.rules.QuestionCount); err != nil {
		return Snapshot{}, err
	}

	wallet, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		// Balance is best-effort at start; the first reconciliation fixes it.
		log.Printf("wallet balance unavailable for %s: %v", userID, err)
		wallet = domain.Wallet{UserID: userID}
	}

	game := newGame(s, userID, instanceID, lang, set, wallet)
	s.games.Put(userID, game)

	s.creditStartReward(userID)

	game.mu.Lock()
	defer game.mu.Unlock()
	game.beginQuestionLocked()
	return game.snapshotLocked(), nil
}

// Restart tears down the finished game and starts a new one, consuming the
// prefetched question set when one is available so no fetch latency is paid.
func (s *GameService) Restart(ctx context.Context, userID, instanceID, lang string) (Snapshot, error) {
	if g, ok := s.games.Get(userID); ok {
		g.stopTimer()
		s.games.Delete(userID)
	}
	return s.StartGame(ctx, userID, instanceID, lang)
}

// FinishGame destroys the session, e.g. on navigation away. The reward video
// session, if any, is force-ended as an exit, not a completion.
func (s *GameService) FinishGame(ctx context.Context, userID string) {
	if g, ok := s.games.Get(userID); ok {
		g.stopTimer()
		s.games.Delete(userID)
	}
	s.videos.Cancel(ctx, userID)
}

// SelectAnswer applies a player selection to the current question.
func (s *GameService) SelectAnswer(ctx context.Context, userID string, key domain.AnswerKey) (Snapshot, error) {
	g, ok := s.games.Get(userID)
	if !ok {
		return Snapshot{}, domain.ErrGameNotFound
	}
	return g.SelectAnswer(ctx, key)
}

// Advance moves past a revealed question (swipe or post-timeout continue).
func (s *GameService) Advance(ctx context.Context, userID string) (Snapshot, error) {
	g, ok := s.games.Get(userID)
	if !ok {
		return Snapshot{}, domain.ErrGameNotFound
	}
	return g.Advance(ctx)
}

// Timeout records countdown expiry for the current question.
func (s *GameService) Timeout(userID string) (Snapshot, error) {
	g, ok := s.games.Get(userID)
	if !ok {
		return Snapshot{}, domain.ErrGameNotFound
	}
	return g.Timeout()
}

// UseLifeline activates a help on the current question.
func (s *GameService) UseLifeline(ctx context.Context, userID string, help domain.LifelineType) (Snapshot, error) {
	g, ok := s.games.Get(userID)
	if !ok {
		return Snapshot{}, domain.ErrGameNotFound
	}
	return g.UseLifeline(ctx, help)
}

// UseQuestionSwap replaces the current question from the spare tail.
func (s *GameService) UseQuestionSwap(ctx context.Context, userID string) (Snapshot, error) {
	g, ok := s.games.Get(userID)
	if !ok {
		return Snapshot{}, domain.ErrGameNotFound
	}
	return g.UseQuestionSwap(ctx)
}

// Rescue pays the continuation cost from the rescue prompt.
func (s *GameService) Rescue(ctx context.Context, userID string) (Snapshot, error) {
	g, ok := s.games.Get(userID)
	if !ok {
		return Snapshot{}, domain.ErrGameNotFound
	}
	return g.Rescue(ctx)
}

// DismissRescue declines the rescue prompt, ending the game.
func (s *GameService) DismissRescue(userID string) (Snapshot, error) {
	g, ok := s.games.Get(userID)
	if !ok {
		return Snapshot{}, domain.ErrGameNotFound
	}
	return g.DismissRescue()
}

// AttachListeners wires transport callbacks into the user's game: wallet
// reconciliation pushes and server-side timeout pushes.
func (s *GameService) AttachListeners(userID string, onWallet func(domain.Wallet), onTimeout func(Snapshot)) error {
	g, ok := s.games.Get(userID)
	if !ok {
		return domain.ErrGameNotFound
	}
	g.OnWalletUpdate(onWallet)
	g.OnTimeout(onTimeout)
	return nil
}

// DetachListeners clears transport callbacks so a closing connection stops
// receiving pushes from in-flight background work.
func (s *GameService) DetachListeners(userID string) {
	if g, ok := s.games.Get(userID); ok {
		g.OnWalletUpdate(nil)
		g.OnTimeout(nil)
	}
}

// WaitSettled blocks until the user's game has no async tail in flight, or
// the cooldown elapses. Used to serialize rapid swipe gestures.
func (s *GameService) WaitSettled(userID string, cooldown time.Duration) bool {
	g, ok := s.games.Get(userID)
	if !ok {
		return true
	}
	return g.WaitSettled(cooldown)
}

// RetryPendingCredits replays failed per-question reward credits.
func (s *GameService) RetryPendingCredits(ctx context.Context, userID string) {
	if g, ok := s.games.Get(userID); ok {
		g.RetryPendingCredits(ctx)
	}
}

// SnapshotFor returns the current state of the user's game.
func (s *GameService) SnapshotFor(userID string) (Snapshot, error) {
	g, ok := s.games.Get(userID)
	if !ok {
		return Snapshot{}, domain.ErrGameNotFound
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked(), nil
}

// creditStartReward issues the one-shot game start credit. Its key is
// timestamp-based and non-repeatable, so a failure is logged and dropped
// rather than retried; see the per-question credits for the contrast.
func (s *GameService) creditStartReward(userID string) {
	if s.rules.StartReward <= 0 {
		return
	}
	key := fmt.Sprintf("%d-start", s.clock().UnixMilli())
	entry := domain.LedgerEntry{
		IdempotencyKey: key,
		UserID:         userID,
		DeltaCoins:     s.rules.StartReward,
		Source:         "game_start",
		CreatedAt:      s.clock(),
	}
	detach(func(ctx context.Context) {
		if _, _, err := s.ledger.Credit(ctx, entry); err != nil {
			log.Printf("game start credit dropped for %s: %v", userID, err)
		}
	})
}

func validateSet(set domain.QuestionSet, want int) error {
	if len(set.Questions) < want {
		return domain.ErrQuestionSetInvalid
	}
	for _, q := range set.Questions[:want] {
		if !q.Valid() {
			return domain.ErrQuestionSetInvalid
		}
	}
	for _, q := range set.Spares {
		if !q.Valid() {
			return domain.ErrQuestionSetInvalid
		}
	}
	return nil
}
