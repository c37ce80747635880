package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quizrush-game-service/internal/domain"
)

// creditScript registers the idempotency key and applies the signed delta in
// one atomic step. A replayed key returns the current balance without
// re-applying; a delta that would drive a balance negative is rejected.
var creditScript = redis.NewScript(`
local entry = KEYS[1]
local wallet = KEYS[2]
local coins = tonumber(ARGV[1])
local lives = tonumber(ARGV[2])
local c = tonumber(redis.call('HGET', wallet, 'coins') or '0')
local l = tonumber(redis.call('HGET', wallet, 'lives') or '0')
if redis.call('EXISTS', entry) == 1 then
  return {0, c, l}
end
if c + coins < 0 then
  return {-1, c, l}
end
if l + lives < 0 then
  return {-2, c, l}
end
c = c + coins
l = l + lives
redis.call('HSET', wallet, 'coins', c, 'lives', l)
redis.call('SET', entry, ARGV[3])
return {1, c, l}
`)

// WalletLedger implements app.WalletLedger on Redis.
// Balances are stored as:  HSET wallet:{userID} coins {n} lives {n}
// Entries are stored as:   SET  wallet:entry:{userID}:{idempotencyKey} {json}
// Scoping entries per user keeps the same key from two users two distinct
// events.
type WalletLedger struct {
	client *redis.Client
}

func NewWalletLedger(client *redis.Client) *WalletLedger {
	return &WalletLedger{client: client}
}

func (l *WalletLedger) Credit(ctx context.Context, entry domain.LedgerEntry) (bool, domain.Wallet, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return false, domain.Wallet{}, err
	}

	res, err := creditScript.Run(ctx, l.client,
		[]string{l.entryKey(entry.UserID, entry.IdempotencyKey), l.walletKey(entry.UserID)},
		entry.DeltaCoins, entry.DeltaLives, string(payload),
	).Slice()
	if err != nil {
		return false, domain.Wallet{}, err
	}
	if len(res) != 3 {
		return false, domain.Wallet{}, fmt.Errorf("credit script: unexpected reply %v", res)
	}

	code := toInt64(res[0])
	wallet := domain.Wallet{
		UserID: entry.UserID,
		Coins:  toInt64(res[1]),
		Lives:  toInt64(res[2]),
	}
	switch code {
	case 1:
		return true, wallet, nil
	case 0:
		return false, wallet, nil
	case -1:
		return false, wallet, domain.ErrInsufficientGold
	default:
		return false, wallet, domain.ErrOutOfLives
	}
}

func (l *WalletLedger) Balance(ctx context.Context, userID string) (domain.Wallet, error) {
	fields, err := l.client.HGetAll(ctx, l.walletKey(userID)).Result()
	if err != nil {
		return domain.Wallet{}, err
	}
	wallet := domain.Wallet{UserID: userID}
	fmt.Sscanf(fields["coins"], "%d", &wallet.Coins)
	fmt.Sscanf(fields["lives"], "%d", &wallet.Lives)
	return wallet, nil
}

// Seed sets a starting balance for a user.
func (l *WalletLedger) Seed(ctx context.Context, userID string, coins, lives int64) error {
	return l.client.HSet(ctx, l.walletKey(userID), "coins", coins, "lives", lives).Err()
}

func (l *WalletLedger) entryKey(userID, idempotencyKey string) string {
	return "wallet:entry:" + userID + ":" + idempotencyKey
}

func (l *WalletLedger) walletKey(userID string) string {
	return "wallet:" + userID
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		var out int64
		fmt.Sscanf(n, "%d", &out)
		return out
	}
	return 0
}
