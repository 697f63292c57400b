package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"chapter-quiz/internal/app"
	"chapter-quiz/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
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
	Chapter string `json:"chapter"`
}

type answerPayload struct {
	Index int `json:"index"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and plays one quiz session
// per connection. The session is abandoned when the socket closes.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	var sessionID string
	defer func() {
		if sessionID != "" {
			h.service.AbandonSession(sessionID)
		}
	}()

	send := func(msgType string, payload any) bool {
		if err := conn.WriteJSON(outboundMessage[any]{Type: msgType, Payload: payload}); err != nil {
			log.Printf("ws write error: %v", err)
			return false
		}
		return true
	}
	sendErr := func(err error) bool {
		return send("error", errorPayload{Message: err.Error()})
	}

	statuses, err := h.service.Chapters(ctx)
	if err != nil {
		sendErr(err)
		return
	}
	overview, err := h.service.Overview(ctx)
	if err != nil {
		sendErr(err)
		return
	}
	if !send("chapters", chaptersResponse{Chapters: statuses, Progress: overview}) {
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		ok := true
		switch inbound.Type {
		case "start":
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				ok = sendErr(errors.New("invalid start payload"))
				break
			}
			if sessionID != "" {
				h.service.AbandonSession(sessionID)
				sessionID = ""
			}
			snap, err := h.service.Start(ctx, payload.Chapter)
			if err != nil {
				ok = sendErr(err)
				break
			}
			sessionID = snap.ID
			ok = send("question", snap)
		case "answer":
			if sessionID == "" {
				ok = sendErr(domain.ErrNoActiveSession)
				break
			}
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				ok = sendErr(errors.New("invalid answer payload"))
				break
			}
			outcome, err := h.service.AnswerSession(ctx, sessionID, payload.Index)
			if err != nil {
				ok = sendErr(err)
				break
			}
			ok = send("answerResult", outcome) && h.advance(ctx, sessionID, send, sendErr)
		case "skip":
			if sessionID == "" {
				ok = sendErr(domain.ErrNoActiveSession)
				break
			}
			if _, err := h.service.SkipSession(ctx, sessionID); err != nil {
				ok = sendErr(err)
				break
			}
			ok = h.advance(ctx, sessionID, send, sendErr)
		case "abandon":
			if sessionID != "" {
				h.service.AbandonSession(sessionID)
				sessionID = ""
			}
			ok = send("abandoned", struct{}{})
		default:
			ok = sendErr(errors.New("unsupported message type"))
		}
		if !ok {
			return
		}
	}
}

// advance sends the next question, or the summary once the queue is exhausted.
func (h *WSHandler) advance(ctx context.Context, sessionID string, send func(string, any) bool, sendErr func(error) bool) bool {
	snap, err := h.service.CurrentSession(sessionID)
	if err != nil {
		return sendErr(err)
	}
	if snap.Question != nil {
		return send("question", snap)
	}
	summary, err := h.service.CompleteSession(ctx, sessionID)
	if err != nil {
		return sendErr(err)
	}
	return send("summary", summary)
}
