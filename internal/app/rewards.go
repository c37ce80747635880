package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"quizrush-game-service/internal/domain"
)

// CreditState tracks one reward credit through the optimistic protocol.
type CreditState string

const (
	CreditPending CreditState = "pending"
	CreditApplied CreditState = "applied"
	CreditFailed  CreditState = "failed"
)

// creditCorrectAnswerLocked applies the per-question reward optimistically in
// the same tick, then confirms against the ledger in the background. The
// local total is never rolled back on failure: the idempotency key is
// re-derivable from the game instance and question index, so a later retry
// collides deliberately with this attempt.
func (g *Game) creditCorrectAnswerLocked(qIndex int) {
	amount := g.rules.CoinsPerCorrect
	g.coinsEarned += amount

	key := fmt.Sprintf("%s-q%d", g.instanceID, qIndex)
	g.credits[key] = CreditPending

	entry := domain.LedgerEntry{
		IdempotencyKey: key,
		UserID:         g.userID,
		DeltaCoins:     amount,
		Source:         "correct_answer",
		CreatedAt:      g.clock(),
	}
	g.detachTail(func(ctx context.Context) {
		if _, _, err := g.svc.ledger.Credit(ctx, entry); err != nil {
			log.Printf("reward credit %s deferred: %v", key, err)
			g.setCreditState(key, CreditFailed)
			return
		}
		// Read-after-write so the UI reflects the authoritative balance.
		wallet, err := g.svc.ledger.Balance(ctx, g.userID)
		if err == nil {
			g.reconcileWallet(wallet)
		}
		g.setCreditState(key, CreditApplied)
	})
}

// RetryPendingCredits re-issues every failed per-question credit with its
// original key. Any subsequent player action may call this; replays are
// absorbed by the ledger.
func (g *Game) RetryPendingCredits(ctx context.Context) {
	g.mu.Lock()
	retry := make([]string, 0, len(g.credits))
	for key, state := range g.credits {
		if state == CreditFailed {
			retry = append(retry, key)
			g.credits[key] = CreditPending
		}
	}
	amount := g.rules.CoinsPerCorrect
	userID := g.userID
	now := g.clock()
	g.mu.Unlock()

	for _, key := range retry {
		entry := domain.LedgerEntry{
			IdempotencyKey: key,
			UserID:         userID,
			DeltaCoins:     amount,
			Source:         "correct_answer",
			CreatedAt:      now,
		}
		g.detachTail(func(ctx context.Context) {
			if _, _, err := g.svc.ledger.Credit(ctx, entry); err != nil {
				g.setCreditState(entry.IdempotencyKey, CreditFailed)
				return
			}
			if wallet, err := g.svc.ledger.Balance(ctx, userID); err == nil {
				g.reconcileWallet(wallet)
			}
			g.setCreditState(entry.IdempotencyKey, CreditApplied)
		})
	}
}

// logHelpUsage is fire-and-forget: detached, panic-swallowing, never
// observed by game-state mutation.
func (g *Game) logHelpUsage(help domain.LifelineType, qIndex int, cost int64) {
	userID := g.userID
	g.detachTail(func(ctx context.Context) {
		if err := g.svc.helps.LogHelpUsage(ctx, userID, help, qIndex, cost); err != nil {
			log.Printf("help usage log dropped: %v", err)
		}
	})
}

// detachTail runs fn on a background context, tracked by the game's tail
// group so swipe serialization can wait for it.
func (g *Game) detachTail(fn func(ctx context.Context)) {
	g.tail.Add(1)
	go func() {
		defer g.tail.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("detached task panic: %v", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		fn(ctx)
	}()
}

// detach is the untracked variant used outside any game session.
func detach(fn func(ctx context.Context)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("detached task panic: %v", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		fn(ctx)
	}()
}
