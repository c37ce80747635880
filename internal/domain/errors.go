package domain

import "errors"

var (
	// ErrGameNotFound is returned when no game session exists for the user.
	ErrGameNotFound = errors.New("game session not found")
	// ErrGameInProgress is returned when starting a game while one is active.
	ErrGameInProgress = errors.New("game already in progress")
	// ErrInvalidAnswerKey indicates a selection outside A/B/C.
	ErrInvalidAnswerKey = errors.New("invalid answer key")
	// ErrAnswerRemoved indicates an answer eliminated by fifty-fifty was selected.
	ErrAnswerRemoved = errors.New("answer was removed by fifty-fifty")
	// ErrLifelineExhausted indicates the per-game activation cap was hit.
	ErrLifelineExhausted = errors.New("lifeline exhausted")
	// ErrInsufficientGold indicates a gold debit could not be covered.
	ErrInsufficientGold = errors.New("insufficient gold")
	// ErrOutOfLives indicates the player has no lives left to spend.
	ErrOutOfLives = errors.New("out of lives")
	// ErrSwapUsed indicates the once-per-game question swap was already spent.
	ErrSwapUsed = errors.New("question swap already used")
	// ErrNoSpareQuestion indicates the question set carried no spare to swap in.
	ErrNoSpareQuestion = errors.New("no spare question available")
	// ErrNoVideoAvailable indicates the preload queue is short of videos.
	ErrNoVideoAvailable = errors.New("no reward video available")
	// ErrNoActiveVideoSession indicates a video call without an active session.
	ErrNoActiveVideoSession = errors.New("no active reward video session")
	// ErrVideoSessionBusy indicates a completion is mid-flight for the session.
	ErrVideoSessionBusy = errors.New("reward video session completing")
	// ErrQuestionSetInvalid indicates fetched content broke a question invariant.
	ErrQuestionSetInvalid = errors.New("question set invalid")
)
