package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"quizrush-game-service/internal/domain"
)

// VideoQueue hands out preloaded sponsor videos. Take is synchronous and
// fails fast when fewer than n videos are buffered; it never blocks on the
// network so playback can start the same frame as the user's tap.
type VideoQueue interface {
	Take(n int) ([]domain.RewardVideo, bool)
}

// VideoSession is one bounded reward-video interaction. It transitions to
// closed exactly once; the session object itself is the idempotency guard
// for completion.
type VideoSession struct {
	ID          string                   `json:"id"`
	UserID      string                   `json:"userId"`
	Context     domain.VideoContext      `json:"context"`
	State       domain.VideoSessionState `json:"state"`
	Required    []domain.RewardVideo     `json:"required"`
	TargetCoins int64                    `json:"targetCoins"`
	TargetLives int64                    `json:"targetLives"`
	StartedAt   time.Time                `json:"startedAt"`
}

// VideoSessionRegistry is the process-wide store of the single active reward
// video session per user. It is created at service construction and reset
// per user on logout; never reached through ambient globals.
type VideoSessionRegistry struct {
	queue            VideoQueue
	ledger           WalletLedger
	videosPerSession int
	clock            func() time.Time
	newID            func() string

	mu     sync.Mutex
	seq    int
	active map[string]*VideoSession
}

func NewVideoSessionRegistry(queue VideoQueue, ledger WalletLedger, videosPerSession int) *VideoSessionRegistry {
	r := &VideoSessionRegistry{
		queue:            queue,
		ledger:           ledger,
		videosPerSession: videosPerSession,
		clock:            time.Now,
		active:           make(map[string]*VideoSession),
	}
	r.newID = func() string {
		r.seq++
		return fmt.Sprintf("rvs-%d-%d", r.clock().UnixMilli(), r.seq)
	}
	return r
}

// WithClock is test-only for deterministic timestamps.
func (r *VideoSessionRegistry) WithClock(now func() time.Time) *VideoSessionRegistry {
	r.clock = now
	return r
}

// rewardFor derives the session reward server-side from its context. The
// client-announced target is advisory only.
func rewardFor(ctx domain.VideoContext) (coins, lives int64) {
	switch ctx {
	case domain.VideoContextDailyGift:
		return 25, 0
	case domain.VideoContextRefill:
		return 0, 1
	case domain.VideoContextRescue:
		return 0, 1
	}
	return 0, 0
}

// Start opens a session for the user, pulling videos synchronously from the
// preload queue. If a session is already active it is replaced atomically:
// the prior one is closed-cancelled under the same lock, so two sessions can
// never credit independently.
func (r *VideoSessionRegistry) Start(ctx context.Context, userID string, vctx domain.VideoContext) (VideoSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prior, exists := r.active[userID]
	if exists && prior.State == domain.VideoCompleting {
		// The prior session's credit is in flight; replacing it now would
		// let two sessions credit independently.
		return VideoSession{}, domain.ErrVideoSessionBusy
	}

	videos, ok := r.queue.Take(r.videosPerSession)
	if !ok {
		return VideoSession{}, domain.ErrNoVideoAvailable
	}

	if exists && prior.State != domain.VideoClosed {
		prior.State = domain.VideoClosed
		r.notifyCancel(prior.ID)
	}

	coins, lives := rewardFor(vctx)
	session := &VideoSession{
		ID:          r.newID(),
		UserID:      userID,
		Context:     vctx,
		State:       domain.VideoActive,
		Required:    videos,
		TargetCoins: coins,
		TargetLives: lives,
		StartedAt:   r.clock(),
	}
	r.active[userID] = session
	return *session, nil
}

// Complete credits the session reward exactly once. The session ID is the
// ledger idempotency key, and a call on an already-closed session is a
// no-op returning the current wallet.
func (r *VideoSessionRegistry) Complete(ctx context.Context, userID string, watchedIDs []string) (domain.Wallet, bool, error) {
	r.mu.Lock()
	session, exists := r.active[userID]
	if !exists {
		r.mu.Unlock()
		return domain.Wallet{}, false, domain.ErrNoActiveVideoSession
	}
	if session.State == domain.VideoClosed || session.State == domain.VideoCompleting {
		r.mu.Unlock()
		wallet, _ := r.ledger.Balance(ctx, userID)
		return wallet, false, nil
	}

	watched := make(map[string]bool, len(watchedIDs))
	for _, id := range watchedIDs {
		watched[id] = true
	}
	for _, v := range session.Required {
		if !watched[v.ID] {
			r.mu.Unlock()
			return domain.Wallet{}, false, domain.ErrNoActiveVideoSession
		}
	}

	session.State = domain.VideoCompleting
	entry := domain.LedgerEntry{
		IdempotencyKey: session.ID,
		UserID:         userID,
		DeltaCoins:     session.TargetCoins,
		DeltaLives:     session.TargetLives,
		Source:         "reward_video_" + string(session.Context),
		CreatedAt:      r.clock(),
	}
	r.mu.Unlock()

	_, _, err := r.ledger.Credit(ctx, entry)
	if err != nil {
		// Back to active so the client may retry; the key stays stable.
		r.mu.Lock()
		if session.State == domain.VideoCompleting {
			session.State = domain.VideoActive
		}
		r.mu.Unlock()
		return domain.Wallet{}, false, err
	}

	// Refresh before teardown so the UI sees the server-confirmed balance
	// while the session still exists.
	wallet, werr := r.ledger.Balance(ctx, userID)
	if werr != nil {
		log.Printf("wallet refresh after video session %s failed: %v", session.ID, werr)
	}

	r.mu.Lock()
	session.State = domain.VideoClosed
	// Tear down only our own registry slot; a replacement installed in the
	// meantime must survive.
	if r.active[userID] == session {
		delete(r.active, userID)
	}
	r.mu.Unlock()
	return wallet, true, nil
}

// Cancel closes the active session without crediting. A session whose
// completion is already in flight is left for the completion path to tear
// down. The downstream notification is best-effort and not retried.
func (r *VideoSessionRegistry) Cancel(_ context.Context, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, exists := r.active[userID]
	if !exists || session.State != domain.VideoActive {
		return
	}
	session.State = domain.VideoClosed
	delete(r.active, userID)
	r.notifyCancel(session.ID)
}

// Active returns the user's session when one is open.
func (r *VideoSessionRegistry) Active(userID string) (VideoSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, exists := r.active[userID]
	if !exists || session.State == domain.VideoClosed {
		return VideoSession{}, false
	}
	return *session, true
}

// Reset drops any session for the user, e.g. at logout.
func (r *VideoSessionRegistry) Reset(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, userID)
}

func (r *VideoSessionRegistry) notifyCancel(sessionID string) {
	detach(func(ctx context.Context) {
		log.Printf("reward video session %s cancelled", sessionID)
	})
}
