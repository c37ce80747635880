package memory

import (
	"context"
	"testing"

	"quizrush-game-service/internal/domain"
)

func TestCreditAppliesEachKeyOnce(t *testing.T) {
	ctx := context.Background()
	ledger := NewWalletLedger()

	for i := 0; i < 4; i++ {
		_, wallet, err := ledger.Credit(ctx, domain.LedgerEntry{
			IdempotencyKey: "game-1-q0",
			UserID:         "u1",
			DeltaCoins:     10,
			Source:         "correct_answer",
		})
		if err != nil {
			t.Fatalf("credit %d: %v", i, err)
		}
		if wallet.Coins != 10 {
			t.Fatalf("credit %d: balance %d, want 10", i, wallet.Coins)
		}
	}
	if ledger.EntryCount() != 1 {
		t.Fatalf("expected a single entry, got %d", ledger.EntryCount())
	}
}

func TestSameKeyDistinctUsersBothApply(t *testing.T) {
	ctx := context.Background()
	ledger := NewWalletLedger()

	// Client-chosen instance IDs can collide across users; dedupe is scoped
	// per user so neither reward is swallowed.
	for _, user := range []string{"alice", "bob"} {
		applied, wallet, err := ledger.Credit(ctx, domain.LedgerEntry{
			IdempotencyKey: "game-1-q0",
			UserID:         user,
			DeltaCoins:     10,
			Source:         "correct_answer",
		})
		if err != nil || !applied {
			t.Fatalf("%s: applied=%v err=%v", user, applied, err)
		}
		if wallet.Coins != 10 {
			t.Fatalf("%s: coins=%d, want 10", user, wallet.Coins)
		}
	}
	if ledger.EntryCount() != 2 {
		t.Fatalf("expected 2 entries, got %d", ledger.EntryCount())
	}
}

func TestDebitFailsClosedOnInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	ledger := NewWalletLedger()
	ledger.Seed("u1", 5, 0)

	_, wallet, err := ledger.Credit(ctx, domain.LedgerEntry{
		IdempotencyKey: "game-1-fiftyFifty-use2",
		UserID:         "u1",
		DeltaCoins:     -15,
		Source:         "lifeline_fiftyFifty",
	})
	if err != domain.ErrInsufficientGold {
		t.Fatalf("expected ErrInsufficientGold, got %v", err)
	}
	if wallet.Coins != 5 {
		t.Fatalf("failed debit moved the balance: %d", wallet.Coins)
	}

	// The key stays reusable after the failure.
	applied, wallet, err := ledger.Credit(ctx, domain.LedgerEntry{
		IdempotencyKey: "game-1-fiftyFifty-use2",
		UserID:         "u1",
		DeltaCoins:     -5,
		Source:         "lifeline_fiftyFifty",
	})
	if err != nil || !applied {
		t.Fatalf("retry with covered amount: applied=%v err=%v", applied, err)
	}
	if wallet.Coins != 0 {
		t.Fatalf("expected 0 coins, got %d", wallet.Coins)
	}
}

func TestLifeDebitRejectedAtZero(t *testing.T) {
	ctx := context.Background()
	ledger := NewWalletLedger()

	_, _, err := ledger.Credit(ctx, domain.LedgerEntry{
		IdempotencyKey: "game-1-q3-continue",
		UserID:         "u1",
		DeltaLives:     -1,
		Source:         "continue_life",
	})
	if err != domain.ErrOutOfLives {
		t.Fatalf("expected ErrOutOfLives, got %v", err)
	}
}
