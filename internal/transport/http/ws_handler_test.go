package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quizrush-game-service/internal/app"
	"quizrush-game-service/internal/domain"
	"quizrush-game-service/internal/infra/memory"
)

func TestWebSocketAnswerFlow(t *testing.T) {
	rules := app.DefaultRules()
	rules.QuestionTimer = 0
	rules.StartReward = 0

	ledger := memory.NewWalletLedger()
	ledger.Seed("u1", 0, 3)
	source := memory.NewStaticQuestionSource(map[string]domain.QuestionSet{
		"en": sampleSet(rules),
	})
	videos := app.NewVideoSessionRegistry(memory.NewVideoQueue(), ledger, 1)
	service := app.NewGameService(rules, memory.NewGameStore(), source, ledger, memory.NewHelpUsageLog(), videos)
	wsHandler := NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?userId=u1&lang=en"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	send(conn, t, "start", map[string]any{"instanceId": "game-1"})
	state := readState(conn, t)
	if state["phase"] != string(domain.PhaseAnswering) {
		t.Fatalf("expected answering, got %v", state["phase"])
	}

	send(conn, t, "answer", map[string]any{"key": "B"})
	state = readState(conn, t)
	if state["phase"] != string(domain.PhaseRevealing) {
		t.Fatalf("expected revealing, got %v", state["phase"])
	}
	if state["correctKey"] != "B" {
		t.Fatalf("expected reveal to carry the correct key, got %v", state["correctKey"])
	}

	send(conn, t, "advance", nil)
	state = readState(conn, t)
	if state["index"].(float64) != 1 {
		t.Fatalf("expected index 1 after advance, got %v", state["index"])
	}
}

func send(conn *websocket.Conn, t *testing.T, typ string, payload map[string]any) {
	t.Helper()
	if payload == nil {
		payload = map[string]any{}
	}
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readState skips interleaved wallet broadcasts and returns the next state
// payload.
func readState(conn *websocket.Conn, t *testing.T) map[string]any {
	t.Helper()
	for i := 0; i < 5; i++ {
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json: %v", err)
		}
		switch msg.Type {
		case "state":
			return msg.Payload
		case "error":
			t.Fatalf("unexpected error message: %v", msg.Payload)
		}
	}
	t.Fatalf("no state message received")
	return nil
}

func sampleSet(rules app.Rules) domain.QuestionSet {
	set := domain.QuestionSet{}
	for i := 0; i < rules.QuestionCount; i++ {
		set.Questions = append(set.Questions, domain.Question{
			ID:   fmt.Sprintf("q%d", i),
			Text: "What is 2 + 2?",
			Answers: []domain.Answer{
				{Key: domain.AnswerA, Text: "3"},
				{Key: domain.AnswerB, Text: "4", Correct: true},
				{Key: domain.AnswerC, Text: "5"},
			},
		})
	}
	return set
}
