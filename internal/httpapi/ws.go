package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/countryleisure/rusty/internal/engine"
)

type wsInbound struct {
	Message string `json:"message"`
}

type wsOutbound struct {
	Type        string `json:"type"`
	Reply       string `json:"reply,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	BuyerStage  string `json:"buyer_stage,omitempty"`
	Engagement  int    `json:"engagement_level,omitempty"`
	RenderStage string `json:"render_status,omitempty"`
	Code        string `json:"code,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// handleChatWS runs a turn-based chat over one websocket connection. The
// user id is fixed per connection: taken from the query string, or minted
// and announced in the hello frame.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = uuid.NewString()[:8]
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
		return nil
	})

	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(wsOutbound{Type: "hello", UserID: userID}); err != nil {
		return
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
		if msgType != websocket.TextMessage {
			continue
		}

		var in wsInbound
		if err := json.Unmarshal(data, &in); err != nil {
			s.writeWS(conn, wsOutbound{Type: "error", Code: "invalid_client_message", Detail: err.Error()})
			continue
		}
		if strings.TrimSpace(in.Message) == "" {
			s.writeWS(conn, wsOutbound{Type: "error", Code: "empty_message", Detail: "message is required"})
			continue
		}

		result, err := s.engine.ProcessTurn(r.Context(), userID, in.Message, time.Now().UTC())
		switch {
		case errors.Is(err, engine.ErrInvalidInput):
			s.writeWS(conn, wsOutbound{Type: "error", Code: "invalid_request", Detail: err.Error()})
			continue
		case errors.Is(err, engine.ErrCompletionUnavailable):
			// The journey state advanced; surface the retry line so the
			// visitor can keep the conversation going.
			s.writeWS(conn, wsOutbound{
				Type:        "reply",
				Reply:       result.Reply,
				UserID:      result.UserID,
				BuyerStage:  string(result.BuyerStage),
				Engagement:  result.Engagement,
				RenderStage: string(result.RenderStage),
			})
			continue
		case err != nil:
			s.writeWS(conn, wsOutbound{Type: "error", Code: "turn_failed", Detail: "something went wrong, please try again"})
			continue
		}

		if !s.writeWS(conn, wsOutbound{
			Type:        "reply",
			Reply:       result.Reply,
			UserID:      result.UserID,
			BuyerStage:  string(result.BuyerStage),
			Engagement:  result.Engagement,
			RenderStage: string(result.RenderStage),
		}) {
			return
		}
	}
}

func (s *Server) writeWS(conn *websocket.Conn, msg wsOutbound) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(msg) == nil
}
