package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"quiz-attempt-engine/internal/app"
)

// WSHandler runs one live attempt per connection: it starts or resumes the
// attempt, accepts the submission and pushes an "expired" notice when the
// deadline passes first.
type WSHandler struct {
	service  *app.AttemptService
	upgrader websocket.Upgrader
	// after arms the deadline timer; tests replace it.
	after func(time.Duration) <-chan time.Time
}

func NewWSHandler(service *app.AttemptService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		after: time.After,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type submitPayload struct {
	Answers   map[string]string `json:"answers"`
	TimeSpent int               `json:"timeSpent"`
}

type reviewPayload struct {
	AttemptNumber int `json:"attemptNumber"`
}

type expiredPayload struct {
	AttemptNumber int `json:"attemptNumber"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

func errorMessage(err error) outboundMessage[any] {
	_, body := errorResponse(err)
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: body.Error, Reason: string(body.Reason)}}
}

// ServeWS upgrades HTTP requests to websockets and drives the attempt use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	subjectID := r.URL.Query().Get("subjectId")
	quizID := r.URL.Query().Get("quizId")
	if subjectID == "" || quizID == "" {
		http.Error(w, "missing subjectId or quizId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	started, err := h.service.BeginAttempt(ctx, subjectID, quizID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	presentation, err := h.service.PresentAttempt(ctx, subjectID, quizID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	deadlineDone := make(chan struct{})

	// Single writer: gorilla connections support one concurrent writer.
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
		defer close(deadlineDone)
		if presentation.ExpectedEnd == nil {
			return
		}
		number := started.Attempt.AttemptNumber
		if !h.awaitExpiry(ctx, subjectID, quizID, number, *presentation.ExpectedEnd, closeSignals) {
			return
		}
		select {
		case send <- outboundMessage[any]{Type: "expired", Payload: expiredPayload{AttemptNumber: number}}:
		case <-closeSignals:
		}
	}()

	send <- outboundMessage[any]{Type: "attempt", Payload: presentation}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		select {
		case send <- h.handle(ctx, subjectID, quizID, inbound):
		case <-writerDone:
		}
	}

	close(closeSignals)
	<-deadlineDone
	close(send)
	<-writerDone
}

// expiryRecheck spaces deadline checks that land on or just before the deadline.
const expiryRecheck = 250 * time.Millisecond

// awaitExpiry blocks until the attempt is timed out at its deadline. It
// returns false when the connection closes or the attempt ends another way.
func (h *WSHandler) awaitExpiry(ctx context.Context, subjectID, quizID string, attemptNumber int, deadline time.Time, closeSignals <-chan struct{}) bool {
	for {
		wait := h.service.Until(deadline)
		if wait <= 0 {
			wait = expiryRecheck
		}
		select {
		case <-h.after(wait):
		case <-closeSignals:
			return false
		}
		expired, err := h.service.ReconcileExpiry(ctx, subjectID, quizID)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("ws expiry check for %s/%s: %v", subjectID, quizID, err)
			}
			return false
		}
		if expired {
			return true
		}
		active, err := h.service.GetActiveAttempt(ctx, subjectID, quizID)
		if err != nil || active == nil || active.AttemptNumber != attemptNumber {
			return false
		}
	}
}

func (h *WSHandler) handle(ctx context.Context, subjectID, quizID string, inbound inboundMessage) outboundMessage[any] {
	switch inbound.Type {
	case "submit":
		var payload submitPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid submit payload"}}
		}
		out, err := h.service.SubmitAttempt(ctx, subjectID, quizID, payload.Answers, payload.TimeSpent)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "result", Payload: out}
	case "review":
		var payload reviewPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.AttemptNumber < 1 {
			return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid review payload"}}
		}
		rv, err := h.service.ReviewAttempt(ctx, subjectID, quizID, payload.AttemptNumber)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "review", Payload: rv}
	default:
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
	}
}
