package memory

import (
	"context"
	"sync"

	"quizrush-game-service/internal/domain"
)

// WalletLedger is an in-memory implementation of app.WalletLedger, useful
// for tests and demos. Entries are kept append-only per (user, idempotency
// key); a replayed key returns the recorded result without re-applying the
// delta, while the same key from another user is a distinct event.
type WalletLedger struct {
	mu      sync.Mutex
	entries map[string]domain.LedgerEntry
	wallets map[string]domain.Wallet
}

func NewWalletLedger() *WalletLedger {
	return &WalletLedger{
		entries: make(map[string]domain.LedgerEntry),
		wallets: make(map[string]domain.Wallet),
	}
}

// Seed sets a starting balance for a user.
func (l *WalletLedger) Seed(userID string, coins, lives int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.wallets[userID] = domain.Wallet{UserID: userID, Coins: coins, Lives: lives}
}

func (l *WalletLedger) Credit(_ context.Context, entry domain.LedgerEntry) (bool, domain.Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, seen := l.entries[entryKey(entry)]; seen {
		return false, l.wallets[entry.UserID], nil
	}

	wallet := l.wallets[entry.UserID]
	wallet.UserID = entry.UserID
	if wallet.Coins+entry.DeltaCoins < 0 {
		return false, wallet, domain.ErrInsufficientGold
	}
	if wallet.Lives+entry.DeltaLives < 0 {
		return false, wallet, domain.ErrOutOfLives
	}

	wallet.Coins += entry.DeltaCoins
	wallet.Lives += entry.DeltaLives
	l.wallets[entry.UserID] = wallet
	l.entries[entryKey(entry)] = entry
	return true, wallet, nil
}

func entryKey(e domain.LedgerEntry) string {
	return e.UserID + ":" + e.IdempotencyKey
}

func (l *WalletLedger) Balance(_ context.Context, userID string) (domain.Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	wallet := l.wallets[userID]
	wallet.UserID = userID
	return wallet, nil
}

// EntryCount reports how many distinct deltas were applied.
func (l *WalletLedger) EntryCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
