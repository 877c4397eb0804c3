package http

import (
	"context"
	"net/http"

	"movie-club-service/internal/app"
	"movie-club-service/internal/domain"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type WSHandler struct {
	service  *app.PredictionService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.PredictionService) *WSHandler {
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

type selectUserPayload struct {
	Username string `json:"username"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

type userPayload struct {
	Username string `json:"username"`
}

type peersResult struct {
	Username string             `json:"username"`
	Peers    []domain.PeerScore `json:"peers"`
}

type historyResult struct {
	Username string              `json:"username"`
	Movies   []domain.RatedMovie `json:"movies"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the prediction use cases.
// Views reach the client only through the session subscription; replies carry peers,
// history and errors.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	users, err := h.service.Users(r.Context())
	if err != nil {
		_ = writeMessage(conn, outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	h.service.Open(r.Context(), sessionID)
	defer h.service.Close(r.Context(), sessionID)

	updates, cancel, err := h.service.Subscribe(r.Context(), sessionID)
	if err != nil {
		_ = writeMessage(conn, outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer goroutine; gorilla connections allow one concurrent writer
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := writeMessage(conn, msg); err != nil {
				log.Warn().Err(err).Str("session", sessionID).Msg("ws write error")
				// unblock the reader so the handler can return
				_ = conn.Close()
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "users", Payload: users}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "view", Payload: update}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

read:
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		reply, ok := h.dispatch(r, sessionID, data)
		if !ok {
			continue
		}
		select {
		case send <- reply:
		case <-writerDone:
			break read
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// dispatch handles one inbound message. Successful state changes reply through the
// subscription, so only peers, history and errors produce a direct reply.
func (h *WSHandler) dispatch(r *http.Request, sessionID string, data []byte) (outboundMessage[any], bool) {
	ctx := r.Context()

	var inbound inboundMessage
	if err := json.Unmarshal(data, &inbound); err != nil {
		return errorMessage("invalid message"), true
	}

	switch inbound.Type {
	case "selectUser":
		var payload selectUserPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid selectUser payload"), true
		}
		if _, err := h.service.SelectUser(ctx, sessionID, payload.Username); err != nil {
			return errorMessage(err.Error()), true
		}
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid answer payload"), true
		}
		answer, err := domain.ParseAnswer(payload.Answer)
		if err != nil {
			return errorMessage(err.Error()), true
		}
		if _, err := h.service.Answer(ctx, sessionID, payload.QuestionID, answer); err != nil {
			return errorMessage(err.Error()), true
		}
	case "reset":
		if _, err := h.service.Reset(ctx, sessionID); err != nil {
			return errorMessage(err.Error()), true
		}
	case "peers", "history":
		username, err := h.targetUser(ctx, sessionID, inbound.Payload)
		if err != nil {
			return errorMessage(err.Error()), true
		}
		if inbound.Type == "peers" {
			peers, err := h.service.Peers(ctx, username)
			if err != nil {
				return errorMessage(err.Error()), true
			}
			return outboundMessage[any]{Type: "peers", Payload: peersResult{Username: username, Peers: peers}}, true
		}
		movies, err := h.service.History(ctx, username)
		if err != nil {
			return errorMessage(err.Error()), true
		}
		return outboundMessage[any]{Type: "history", Payload: historyResult{Username: username, Movies: movies}}, true
	default:
		return errorMessage("unsupported message type"), true
	}
	return outboundMessage[any]{}, false
}

// targetUser picks the payload username, falling back to the session's user.
func (h *WSHandler) targetUser(ctx context.Context, sessionID string, raw json.RawMessage) (string, error) {
	var payload userPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return "", err
		}
	}
	if payload.Username != "" {
		return payload.Username, nil
	}
	view, err := h.service.View(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if view.Username == "" {
		return "", domain.ErrNoUserSelected
	}
	return view.Username, nil
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

func writeMessage(conn *websocket.Conn, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
