package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizrush-game-service/internal/domain"
)

// WalletLedger is the durable implementation of app.WalletLedger. The
// wallet_entries table is keyed (user_id, idempotency_key); the insert and
// the balance update commit in one transaction, so a key applies at most
// once per user no matter how often the client retries.
type WalletLedger struct {
	pool *pgxpool.Pool
}

func NewWalletLedger(pool *pgxpool.Pool) *WalletLedger {
	return &WalletLedger{pool: pool}
}

func (l *WalletLedger) Credit(ctx context.Context, entry domain.LedgerEntry) (bool, domain.Wallet, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return false, domain.Wallet{}, fmt.Errorf("begin credit: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO wallet_entries (user_id, idempotency_key, delta_coins, delta_lives, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, idempotency_key) DO NOTHING`,
		entry.UserID, entry.IdempotencyKey, entry.DeltaCoins, entry.DeltaLives, entry.Source, entry.CreatedAt)
	if err != nil {
		return false, domain.Wallet{}, fmt.Errorf("insert entry: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Replay: the delta is already applied, report the current balance.
		wallet, err := l.balanceTx(ctx, tx, entry.UserID)
		if err != nil {
			return false, domain.Wallet{}, err
		}
		return false, wallet, tx.Commit(ctx)
	}

	var wallet domain.Wallet
	wallet.UserID = entry.UserID
	err = tx.QueryRow(ctx, `
		INSERT INTO wallets (user_id, coins, lives) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			coins = wallets.coins + EXCLUDED.coins,
			lives = wallets.lives + EXCLUDED.lives
		RETURNING coins, lives`,
		entry.UserID, entry.DeltaCoins, entry.DeltaLives).Scan(&wallet.Coins, &wallet.Lives)
	if err != nil {
		return false, domain.Wallet{}, fmt.Errorf("apply delta: %w", err)
	}

	if wallet.Coins < 0 || wallet.Lives < 0 {
		// Roll back both the entry and the delta; the key stays reusable.
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return false, domain.Wallet{}, rbErr
		}
		current, err := l.Balance(ctx, entry.UserID)
		if err != nil {
			return false, domain.Wallet{}, err
		}
		if wallet.Coins < 0 {
			return false, current, domain.ErrInsufficientGold
		}
		return false, current, domain.ErrOutOfLives
	}

	return true, wallet, tx.Commit(ctx)
}

func (l *WalletLedger) Balance(ctx context.Context, userID string) (domain.Wallet, error) {
	wallet := domain.Wallet{UserID: userID}
	err := l.pool.QueryRow(ctx, `SELECT coins, lives FROM wallets WHERE user_id=$1`, userID).
		Scan(&wallet.Coins, &wallet.Lives)
	if err == pgx.ErrNoRows {
		return wallet, nil
	}
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("load wallet: %w", err)
	}
	return wallet, nil
}

func (l *WalletLedger) balanceTx(ctx context.Context, tx pgx.Tx, userID string) (domain.Wallet, error) {
	wallet := domain.Wallet{UserID: userID}
	err := tx.QueryRow(ctx, `SELECT coins, lives FROM wallets WHERE user_id=$1`, userID).
		Scan(&wallet.Coins, &wallet.Lives)
	if err == pgx.ErrNoRows {
		return wallet, nil
	}
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("load wallet: %w", err)
	}
	return wallet, nil
}
