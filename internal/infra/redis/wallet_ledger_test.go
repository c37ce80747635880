package redis

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quizrush-game-service/internal/domain"
)

func newLedger(t *testing.T) (*WalletLedger, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewWalletLedger(client), mr
}

func TestCreditIsIdempotentPerKey(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger(t)

	entry := domain.LedgerEntry{
		IdempotencyKey: "game-1-q0",
		UserID:         "u1",
		DeltaCoins:     10,
		Source:         "correct_answer",
	}

	applied, wallet, err := ledger.Credit(ctx, entry)
	if err != nil || !applied || wallet.Coins != 10 {
		t.Fatalf("first credit: applied=%v coins=%d err=%v", applied, wallet.Coins, err)
	}

	for i := 0; i < 3; i++ {
		applied, wallet, err = ledger.Credit(ctx, entry)
		if err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
		if applied || wallet.Coins != 10 {
			t.Fatalf("replay %d re-applied: applied=%v coins=%d", i, applied, wallet.Coins)
		}
	}

	balance, err := ledger.Balance(ctx, "u1")
	if err != nil || balance.Coins != 10 {
		t.Fatalf("balance: %+v err=%v", balance, err)
	}
}

func TestSameKeyDistinctUsersBothApply(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger(t)

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
}

func TestDebitFailsClosedAtomically(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger(t)
	if err := ledger.Seed(ctx, "u1", 5, 1); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, wallet, err := ledger.Credit(ctx, domain.LedgerEntry{
		IdempotencyKey: "game-1-audience-use2",
		UserID:         "u1",
		DeltaCoins:     -15,
		Source:         "lifeline_audience",
	})
	if err != domain.ErrInsufficientGold {
		t.Fatalf("expected ErrInsufficientGold, got %v", err)
	}
	if wallet.Coins != 5 {
		t.Fatalf("failed debit moved balance: %d", wallet.Coins)
	}

	_, _, err = ledger.Credit(ctx, domain.LedgerEntry{
		IdempotencyKey: "game-1-q2-continue",
		UserID:         "u1",
		DeltaLives:     -2,
		Source:         "continue_life",
	})
	if err != domain.ErrOutOfLives {
		t.Fatalf("expected ErrOutOfLives, got %v", err)
	}
}

func TestDistinctKeysAccumulate(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger(t)

	for i, key := range []string{"game-1-q0", "game-1-q1", "game-1-q2"} {
		applied, wallet, err := ledger.Credit(ctx, domain.LedgerEntry{
			IdempotencyKey: key,
			UserID:         "u1",
			DeltaCoins:     10,
			Source:         "correct_answer",
		})
		if err != nil || !applied {
			t.Fatalf("credit %d: applied=%v err=%v", i, applied, err)
		}
		if wallet.Coins != int64(10*(i+1)) {
			t.Fatalf("credit %d: coins=%d", i, wallet.Coins)
		}
	}
}
