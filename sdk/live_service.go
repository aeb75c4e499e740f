package practice

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mrchandrayee/interview-practice/pkg/core"
	"github.com/mrchandrayee/interview-practice/pkg/live"
)

// LiveOptions configures a live session started through the client.
type LiveOptions struct {
	// Decoder converts received audio segments into playable form; nil means
	// segments are already playable.
	Decoder live.Decoder
	// Player plays agent audio; nil discards it.
	Player live.Player

	OnError      func(error)
	OnAgentState func(live.AgentState)
	OnConnState  func(live.ConnState)
	OnEntry      func(live.Entry)
	OnLesson     func(content json.RawMessage)

	// TurnTimeout bounds a stalled agent turn; zero disables the watchdog.
	TurnTimeout time.Duration

	// ReconnectBaseDelay and MaxReconnectAttempts tune the reconnect policy.
	// Zero values use the defaults (1s, 5 attempts).
	ReconnectBaseDelay   time.Duration
	MaxReconnectAttempts int
}

// LiveService opens live websocket sessions.
type LiveService struct {
	client *Client
}

// ConnectInterview opens a live interview session. The returned session is
// already connecting; close it to tear the connection down.
func (s *LiveService) ConnectInterview(interviewID string, opts LiveOptions) (*live.Session, error) {
	if strings.TrimSpace(interviewID) == "" {
		return nil, core.NewInvalidRequestErrorWithParam("interview id must not be empty", "interview_id")
	}
	return s.connect(live.VariantInterview, interviewID, fmt.Sprintf("/ws/interview/%s", interviewID), opts)
}

// ConnectTraining opens a live training session. The returned session is
// already connecting; close it to tear the connection down.
func (s *LiveService) ConnectTraining(sessionID string, opts LiveOptions) (*live.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, core.NewInvalidRequestErrorWithParam("session id must not be empty", "session_id")
	}
	return s.connect(live.VariantTraining, sessionID, fmt.Sprintf("/ws/training/session/%s/", sessionID), opts)
}

func (s *LiveService) connect(variant live.Variant, id, path string, opts LiveOptions) (*live.Session, error) {
	wsURL, err := s.client.webSocketEndpoint(path)
	if err != nil {
		return nil, err
	}

	transport := live.NewWebsocketTransport(wsURL,
		live.WithHeader(s.client.authHeader()),
		live.WithTransportLogger(s.client.logger),
	)
	conn := live.NewReconnector(transport, live.ReconnectConfig{
		BaseDelay:   opts.ReconnectBaseDelay,
		MaxAttempts: opts.MaxReconnectAttempts,
		Logger:      s.client.logger,
	})

	session, err := live.NewSession(live.SessionConfig{
		Variant:      variant,
		SessionID:    id,
		Conn:         conn,
		Decoder:      opts.Decoder,
		Player:       opts.Player,
		Logger:       s.client.logger,
		OnError:      opts.OnError,
		OnAgentState: opts.OnAgentState,
		OnConnState:  opts.OnConnState,
		OnEntry:      opts.OnEntry,
		OnLesson:     opts.OnLesson,
		TurnTimeout:  opts.TurnTimeout,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}

	session.Start()
	return session, nil
}
