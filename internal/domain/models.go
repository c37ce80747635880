package domain

import "time"

// AnswerKey identifies one of the three answers of a question.
type AnswerKey string

const (
	AnswerA AnswerKey = "A"
	AnswerB AnswerKey = "B"
	AnswerC AnswerKey = "C"
)

// TimeoutSentinel is recorded as the selected answer when the countdown
// expires before the player picks anything.
const TimeoutSentinel AnswerKey = "__timeout__"

// Answer is a single option of a question.
type Answer struct {
	Key     AnswerKey `json:"key"`
	Text    string    `json:"text"`
	Correct bool      `json:"correct"`
}

// Question models an MCQ question with exactly one correct answer out of three.
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"question"`
	Answers []Answer `json:"answers"`
}

// CorrectKey returns the key of the correct answer, or "" for malformed data.
func (q Question) CorrectKey() AnswerKey {
	for _, a := range q.Answers {
		if a.Correct {
			return a.Key
		}
	}
	return ""
}

// Valid reports whether the question holds the exactly-one-correct and
// unique-key invariants.
func (q Question) Valid() bool {
	if len(q.Answers) != 3 {
		return false
	}
	correct := 0
	seen := map[AnswerKey]bool{}
	for _, a := range q.Answers {
		if seen[a.Key] {
			return false
		}
		seen[a.Key] = true
		if a.Correct {
			correct++
		}
	}
	return correct == 1
}

// QuestionSet is the fixed playable sequence plus spare questions used by
// the question-swap lifeline.
type QuestionSet struct {
	Questions []Question `json:"questions"`
	Spares    []Question `json:"spares,omitempty"`
}

// Phase is the state of the game progression machine.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseAnswering    Phase = "answering"
	PhaseRevealing    Phase = "revealing"
	PhaseRescuePrompt Phase = "rescuePrompt"
	PhaseFinished     Phase = "finished"
	PhaseOutOfLives   Phase = "outOfLives"
)

// LifelineType enumerates the three helps.
type LifelineType string

const (
	LifelineFiftyFifty   LifelineType = "fiftyFifty"
	LifelineDoubleAnswer LifelineType = "doubleAnswer"
	LifelineAudience     LifelineType = "audience"
)

// AnswerResult records the outcome of one question for the session log.
type AnswerResult struct {
	QuestionID   string        `json:"questionId"`
	Selected     AnswerKey     `json:"selected"`
	Correct      bool          `json:"correct"`
	ResponseTime time.Duration `json:"responseTime"`
	CoinsAwarded int64         `json:"coinsAwarded"`
}

// LedgerEntry is one signed wallet delta keyed by a caller-supplied
// idempotency key. Submitting a duplicate key returns the original result
// without re-applying the delta.
type LedgerEntry struct {
	IdempotencyKey string    `json:"idempotencyKey"`
	UserID         string    `json:"userId"`
	DeltaCoins     int64     `json:"deltaCoins"`
	DeltaLives     int64     `json:"deltaLives"`
	Source         string    `json:"source"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Wallet is the server-confirmed balance snapshot for a user.
type Wallet struct {
	UserID string `json:"userId"`
	Coins  int64  `json:"coins"`
	Lives  int64  `json:"lives"`
}

// VideoSessionState is the lifecycle of a reward video session.
type VideoSessionState string

const (
	VideoIdle       VideoSessionState = "idle"
	VideoActive     VideoSessionState = "active"
	VideoCompleting VideoSessionState = "completing"
	VideoClosed     VideoSessionState = "closed"
)

// VideoContext tells the server why the session was started; the reward
// amount is derived from it server-side, never trusted from the client.
type VideoContext string

const (
	VideoContextDailyGift VideoContext = "daily_gift"
	VideoContextRefill    VideoContext = "refill"
	VideoContextRescue    VideoContext = "rescue"
)

// RewardVideo is one preloaded sponsor video.
type RewardVideo struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
