package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"sciquiz-service/internal/app"
	"sciquiz-service/internal/domain"
)

type WSHandler struct {
	service  *app.SessionService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService) *WSHandler {
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

type answerPayload struct {
	Option int `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func quizContextFromQuery(r *http.Request) (domain.QuizContext, bool) {
	q := r.URL.Query()
	qctx := domain.QuizContext{
		ClassID:  q.Get("classId"),
		Level:    q.Get("level"),
		Language: q.Get("lang"),
	}
	if qctx.ClassID == "" || qctx.Level == "" {
		return domain.QuizContext{}, false
	}
	if qctx.Language == "" {
		qctx.Language = "en"
	}
	// topic arrives as a name on the question-bank contract and as an
	// ID from the quiz frontend; accept both.
	raw := q.Get("topic")
	if id, err := strconv.Atoi(raw); err == nil {
		if id < 0 {
			return domain.QuizContext{}, false
		}
		qctx.TopicID = id
		return qctx, true
	}
	id, ok := domain.TopicIDByName(raw)
	if !ok {
		return domain.QuizContext{}, false
	}
	qctx.TopicID = id
	return qctx, true
}

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz
// session use cases. One connection drives one quiz context; session events
// (state, celebration, completed) are pushed as they happen.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	qctx, ok := quizContextFromQuery(r)
	if !ok {
		http.Error(w, "missing or invalid classId, level, or topic", http.StatusBadRequest)
		return
	}
	playerName := r.URL.Query().Get("name")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	if _, err := h.service.Enter(r.Context(), qctx, playerName); err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	events, cancel, err := h.service.Subscribe(r.Context(), qctx)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: string(ev.Type), Payload: ev}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.handleInbound(r, qctx, inbound, send); err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handleInbound(r *http.Request, qctx domain.QuizContext, inbound inboundMessage, send chan<- outboundMessage[any]) error {
	ctx := r.Context()
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
			return nil
		}
		_, err := h.service.Answer(ctx, qctx, payload.Option)
		return err
	case "next":
		_, err := h.service.Advance(ctx, qctx)
		return err
	case "prev":
		_, err := h.service.Retreat(ctx, qctx)
		return err
	case "restart":
		_, err := h.service.Restart(ctx, qctx)
		return err
	case "reset":
		if err := h.service.Reset(ctx, qctx); err != nil {
			return err
		}
		// a reset context has no session to push from; acknowledge directly
		send <- outboundMessage[any]{Type: "reset", Payload: struct{}{}}
		return nil
	case "state":
		view, err := h.service.State(qctx)
		if err != nil {
			return err
		}
		send <- outboundMessage[any]{Type: "state", Payload: app.Event{Type: app.EventState, State: &view}}
		return nil
	default:
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		return nil
	}
}
