package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"quizbowl-practice/internal/app"
	"quizbowl-practice/internal/auth"
	"quizbowl-practice/internal/domain"
)

type WSHandler struct {
	service  *app.PracticeService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.PracticeService, checkOrigin func(r *http.Request) bool) *WSHandler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type textPayload struct {
	Text string `json:"text"`
}

type voicePayload struct {
	Name string `json:"name"`
}

type ratePayload struct {
	Rate float64 `json:"rate"`
}

type speechErrorPayload struct {
	Message string `json:"message"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades an authenticated request and runs one practice connection.
// Commands mutate the session; every change reaches the client through the
// session's snapshot stream.
func (h *WSHandler) ServeWS(c *gin.Context) {
	session, ok := auth.SessionFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session", "retry": true})
		return
	}
	setID := c.Query("setId")
	if setID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing setId"})
		return
	}
	userID := session.UserID
	ctx := c.Request.Context()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	practice, err := h.service.Open(ctx, userID, setID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	// the request context may end with the connection; progress must still be saved
	defer h.service.Leave(context.WithoutCancel(ctx), practice)

	updates, cancel, err := h.service.Subscribe(userID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer: gorilla connections allow one concurrent writer
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
		defer close(updatesDone)
		// the session closing (sign-out, set switch) ends the connection
		defer conn.Close()
		lastClip := 0
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				for _, msg := range outboundForState(update, &lastClip) {
					select {
					case send <- msg:
					case <-closeSignals:
						return
					}
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
		if err := h.dispatch(c, userID, inbound); err != nil {
			select {
			case send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}:
			case <-updatesDone:
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

var errUnsupported = errors.New("unsupported message type")

func (h *WSHandler) dispatch(c *gin.Context, userID string, msg inboundMessage) error {
	var err error
	switch msg.Type {
	case "play":
		_, err = h.service.Play(userID)
	case "pause":
		_, err = h.service.Pause(userID)
	case "resume":
		_, err = h.service.Resume(userID)
	case "stop":
		_, err = h.service.Stop(userID)
	case "next":
		_, err = h.service.Next(userID)
	case "previous":
		_, err = h.service.Previous(userID)
	case "buzz":
		_, err = h.service.Buzz(userID)
	case "dismiss":
		_, err = h.service.Dismiss(userID)
	case "type", "answer":
		var payload textPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return errors.New("invalid " + msg.Type + " payload")
		}
		if msg.Type == "type" {
			_, err = h.service.Type(userID, payload.Text)
		} else {
			_, err = h.service.Submit(userID, payload.Text)
		}
	case "voice":
		var payload voicePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return errors.New("invalid voice payload")
		}
		_, err = h.service.SelectVoice(c.Request.Context(), userID, payload.Name)
	case "rate":
		var payload ratePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return errors.New("invalid rate payload")
		}
		_, err = h.service.SetRate(userID, payload.Rate)
	case "speechError":
		var payload speechErrorPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return errors.New("invalid speechError payload")
		}
		_, err = h.service.ReportSpeechError(userID, payload.Message)
	default:
		return errUnsupported
	}
	return err
}

// outboundForState splits a snapshot into an audio frame (once per clip) and a
// state frame that carries the clip without its audio.
func outboundForState(state domain.PracticeState, lastClip *int) []outboundMessage[any] {
	var out []outboundMessage[any]
	if state.Clip != nil {
		if state.Clip.Seq != *lastClip {
			*lastClip = state.Clip.Seq
			out = append(out, outboundMessage[any]{Type: "audio", Payload: *state.Clip})
		}
		clip := *state.Clip
		clip.Content = ""
		state.Clip = &clip
	}
	return append(out, outboundMessage[any]{Type: "state", Payload: state})
}
