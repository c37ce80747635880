package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"quizrush-game-service/internal/app"
	"quizrush-game-service/internal/domain"
)

// swipeCooldown bounds how long a new swipe waits for the previous advance's
// async tail before proceeding anyway.
const swipeCooldown = 250 * time.Millisecond

type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	InstanceID string `json:"instanceId"`
}

type answerPayload struct {
	Key domain.AnswerKey `json:"key"`
}

type helpPayload struct {
	Help domain.LifelineType `json:"help"`
}

type videoStartPayload struct {
	Context domain.VideoContext `json:"context"`
}

type videoCompletePayload struct {
	WatchedIDs []string `json:"watchedIds"`
}

type videoResult struct {
	Credited bool          `json:"credited"`
	Wallet   domain.Wallet `json:"wallet"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and drives one player's game.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	lang := r.URL.Query().Get("lang")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}
	if lang == "" {
		lang = "en"
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	push := func(typ string, payload any) {
		select {
		case send <- outboundMessage[any]{Type: typ, Payload: payload}:
		case <-closeSignals:
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r, userID, lang, inbound, push)
	}

	// Dropped connection is an exit, not a completion: tear the session down
	// without crediting anything still open. Listeners detach and async tails
	// drain before the send channel closes, so no late push hits it.
	h.service.DetachListeners(userID)
	h.service.WaitSettled(userID, time.Second)
	h.service.FinishGame(r.Context(), userID)
	close(closeSignals)
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(r *http.Request, userID, lang string, inbound inboundMessage, push func(string, any)) {
	ctx := r.Context()

	fail := func(err error) {
		push("error", errorPayload{Message: err.Error()})
	}
	state := func(snap app.Snapshot, err error) {
		if err != nil {
			fail(err)
			// Errors that leave the game playable still refresh the view.
			if snap.Phase == "" {
				return
			}
		}
		push("state", snap)
	}

	switch inbound.Type {
	case "start", "restart":
		var payload startPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.InstanceID == "" {
			fail(errors.New("invalid start payload"))
			return
		}
		var snap app.Snapshot
		var err error
		if inbound.Type == "restart" {
			snap, err = h.service.Restart(ctx, userID, payload.InstanceID, lang)
		} else {
			snap, err = h.service.StartGame(ctx, userID, payload.InstanceID, lang)
		}
		if err != nil {
			fail(err)
			return
		}
		_ = h.service.AttachListeners(userID,
			func(wallet domain.Wallet) { push("wallet", wallet) },
			func(snap app.Snapshot) { push("state", snap) },
		)
		push("state", snap)

	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail(errors.New("invalid answer payload"))
			return
		}
		state(h.service.SelectAnswer(ctx, userID, payload.Key))

	case "advance":
		h.service.WaitSettled(userID, swipeCooldown)
		h.service.RetryPendingCredits(ctx, userID)
		state(h.service.Advance(ctx, userID))

	case "help":
		var payload helpPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail(errors.New("invalid help payload"))
			return
		}
		state(h.service.UseLifeline(ctx, userID, payload.Help))

	case "swap":
		state(h.service.UseQuestionSwap(ctx, userID))

	case "rescue":
		state(h.service.Rescue(ctx, userID))

	case "dismiss":
		state(h.service.DismissRescue(userID))

	case "finish":
		h.service.FinishGame(ctx, userID)

	case "videoStart":
		var payload videoStartPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail(errors.New("invalid video payload"))
			return
		}
		session, err := h.service.Videos().Start(ctx, userID, payload.Context)
		if err != nil {
			fail(err)
			return
		}
		push("video", session)

	case "videoComplete":
		var payload videoCompletePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail(errors.New("invalid video payload"))
			return
		}
		wallet, credited, err := h.service.Videos().Complete(ctx, userID, payload.WatchedIDs)
		if err != nil {
			fail(err)
			return
		}
		push("videoResult", videoResult{Credited: credited, Wallet: wallet})

	case "videoCancel":
		h.service.Videos().Cancel(ctx, userID)
		push("videoResult", videoResult{Credited: false})

	default:
		fail(errors.New("unsupported message type"))
	}
}
