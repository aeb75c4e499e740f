package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/mrchandrayee/interview-practice/pkg/core"
	"github.com/mrchandrayee/interview-practice/pkg/live/protocol"
)

// Variant selects which session protocol the client speaks.
type Variant string

const (
	// VariantInterview is a live mock interview session.
	VariantInterview Variant = "interview"
	// VariantTraining is a live training lesson session.
	VariantTraining Variant = "training"
)

// Connection is the reconnect-managed transport a Session drives. It is
// satisfied by *Reconnector.
type Connection interface {
	Connect()
	Close()
	Send(msg protocol.ClientMessage) error
	State() ConnState
	OnStateChange(fn func(ConnState)) func()
	OnMessage(fn func(protocol.ServerMessage)) func()
	OnError(fn func(error)) func()
}

// SessionConfig configures a live session client.
type SessionConfig struct {
	Variant   Variant
	SessionID string
	Conn      Connection

	// Decoder converts received audio segments into playable form; nil means
	// segments are already playable.
	Decoder Decoder
	// Player plays decoded segments; nil discards agent audio.
	Player Player

	Logger *slog.Logger

	// OnError receives transport, protocol, and server errors.
	OnError func(error)
	// OnAgentState fires on every agent speaking-state transition.
	OnAgentState func(AgentState)
	// OnConnState fires on every connection state transition.
	OnConnState func(ConnState)
	// OnEntry fires once per transcript entry, local or server-driven.
	OnEntry func(Entry)
	// OnLesson fires when the training server delivers lesson content.
	OnLesson func(content json.RawMessage)

	// TurnTimeout bounds how long a turn may stay open with no further
	// server events before the session is forced back to idle. Zero
	// disables the watchdog.
	TurnTimeout time.Duration
}

// Session is the realtime session client core, generic over the interview
// and training variants: one transport, one reconnect policy, one audio
// queue, one state machine, one transcript.
type Session struct {
	variant Variant
	id      string
	conn    Connection
	logger  *slog.Logger

	audio      *AudioQueue
	turn       *TurnState
	transcript *Transcript

	onError     func(error)
	onConnState func(ConnState)
	onEntry     func(Entry)
	onLesson    func(json.RawMessage)

	turnTimeout time.Duration

	mu            sync.Mutex
	currentLesson json.RawMessage
	watchdog      *time.Timer
	started       bool
	closed        bool
	unsubs        []func()
}

type discardPlayer struct{}

func (discardPlayer) Play(ctx context.Context, pcm []byte) error { return nil }

// NewSession creates a session client. The caller retains ownership of the
// Connection's construction but hands its lifecycle to the session: Start
// connects it, Close shuts it down.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.SessionID == "" {
		return nil, core.NewInvalidRequestError("session id must not be empty")
	}
	if cfg.Variant != VariantInterview && cfg.Variant != VariantTraining {
		return nil, core.NewInvalidRequestErrorWithParam("variant must be interview or training", "variant")
	}
	if cfg.Conn == nil {
		return nil, core.NewInvalidRequestError("connection must not be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	player := cfg.Player
	if player == nil {
		player = discardPlayer{}
	}

	s := &Session{
		variant:     cfg.Variant,
		id:          cfg.SessionID,
		conn:        cfg.Conn,
		logger:      cfg.Logger,
		audio:       NewAudioQueue(cfg.Decoder, player, cfg.Logger),
		turn:        NewTurnState(cfg.OnAgentState),
		transcript:  NewTranscript(),
		onError:     cfg.OnError,
		onConnState: cfg.OnConnState,
		onEntry:     cfg.OnEntry,
		onLesson:    cfg.OnLesson,
		turnTimeout: cfg.TurnTimeout,
	}
	return s, nil
}

// Start subscribes to connection events and opens the connection. Idempotent.
func (s *Session) Start() {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.unsubs = append(s.unsubs,
		s.conn.OnMessage(s.handleMessage),
		s.conn.OnError(s.handleTransportError),
		s.conn.OnStateChange(s.handleConnState),
	)
	s.mu.Unlock()

	s.conn.Connect()
}

// Close tears the session down: no callbacks fire afterward, in-flight
// playback stops, and queued audio is dropped. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubs := s.unsubs
	s.unsubs = nil
	if s.watchdog != nil {
		s.watchdog.Stop()
		s.watchdog = nil
	}
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	s.conn.Close()
	s.audio.Close()
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Variant returns the session variant.
func (s *Session) Variant() Variant { return s.variant }

// ConnState returns the current connection state.
func (s *Session) ConnState() ConnState { return s.conn.State() }

// AgentState returns the current agent speaking state.
func (s *Session) AgentState() AgentState { return s.turn.State() }

// CanSubmit reports whether user submissions are permitted right now.
func (s *Session) CanSubmit() bool { return s.turn.CanSubmit() }

// Transcript returns a snapshot of the transcript in display order.
func (s *Session) Transcript() []Entry { return s.transcript.Snapshot() }

// CurrentLesson returns the most recent lesson content, if any.
func (s *Session) CurrentLesson() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLesson
}

// SendMessage submits candidate free text (interview variant). Rejected
// while the agent is speaking; no frame is sent in that case.
func (s *Session) SendMessage(content string) error {
	if s.variant != VariantInterview {
		return core.NewInvalidRequestError("user_message is an interview operation")
	}
	if err := s.checkSubmit(); err != nil {
		return err
	}
	if err := s.conn.Send(protocol.NewUserMessage(content)); err != nil {
		return err
	}
	s.append(RoleCandidate, content)
	return nil
}

// Interrupt suspends the in-progress agent turn: playback stops immediately,
// queued audio is dropped, and the server is notified. Rejected when the
// agent is not speaking.
func (s *Session) Interrupt() error {
	if s.conn.State() != StateConnected {
		return core.NewConnectionError("socket is not connected")
	}
	if !s.turn.Interrupt() {
		return core.NewInvalidRequestError("no agent turn in progress to interrupt")
	}
	s.audio.Interrupt()
	s.stopWatchdog()
	return s.conn.Send(protocol.NewInterrupt())
}

// Resume continues after an interrupt and notifies the server. Rejected when
// the session is not interrupted.
func (s *Session) Resume() error {
	if s.conn.State() != StateConnected {
		return core.NewConnectionError("socket is not connected")
	}
	if !s.turn.Resume() {
		return core.NewInvalidRequestError("session is not interrupted")
	}
	return s.conn.Send(protocol.NewResume())
}

// StartLesson begins a training lesson (training variant).
func (s *Session) StartLesson(lessonID string) error {
	if s.variant != VariantTraining {
		return core.NewInvalidRequestError("start_lesson is a training operation")
	}
	if lessonID == "" {
		return core.NewInvalidRequestErrorWithParam("lesson id must not be empty", "lesson_id")
	}
	return s.conn.Send(protocol.NewStartLesson(lessonID))
}

// SubmitResponse submits a lesson response with optional recorded audio
// (training variant). Rejected while the agent is speaking.
func (s *Session) SubmitResponse(response string, audio []byte) error {
	if s.variant != VariantTraining {
		return core.NewInvalidRequestError("user_response is a training operation")
	}
	if err := s.checkSubmit(); err != nil {
		return err
	}
	if err := s.conn.Send(protocol.NewUserResponse(response, audio)); err != nil {
		return err
	}
	s.append(RoleCandidate, response)
	return nil
}

// AskQuestion asks a free-form question about the lesson (training variant).
func (s *Session) AskQuestion(question string) error {
	if s.variant != VariantTraining {
		return core.NewInvalidRequestError("question is a training operation")
	}
	if err := s.checkSubmit(); err != nil {
		return err
	}
	return s.conn.Send(protocol.NewQuestion(question))
}

func (s *Session) checkSubmit() error {
	if s.conn.State() != StateConnected {
		return core.NewConnectionError("socket is not connected")
	}
	if !s.turn.CanSubmit() {
		return core.NewInvalidRequestError("agent is speaking; interrupt or wait for the turn to finish")
	}
	return nil
}

func (s *Session) handleMessage(msg protocol.ServerMessage) {
	switch m := msg.(type) {
	case protocol.ServerAIResponse:
		s.append(RoleInterviewer, m.Content)
		s.turn.BeginTurn()
		s.resetWatchdog()
	case protocol.ServerAudioChunk:
		s.turn.BeginTurn()
		s.resetWatchdog()
		s.audio.Enqueue(m.Data)
	case protocol.ServerAIDone:
		s.stopWatchdog()
		s.turn.EndTurn()
	case protocol.ServerError:
		// The server aborts the turn without an ai_done on failure; force
		// idle so the UI never believes the agent is still talking.
		s.stopWatchdog()
		s.turn.ForceIdle()
		s.emitError(core.NewAPIError(m.Message))
	case protocol.ServerInterrupted:
		s.logger.Debug("server confirmed interrupt", "session", s.id)
	case protocol.ServerResumed:
		s.logger.Debug("server confirmed resume", "session", s.id)
	case protocol.ServerLessonContent:
		s.mu.Lock()
		s.currentLesson = m.Content
		onLesson := s.onLesson
		s.mu.Unlock()
		if onLesson != nil {
			onLesson(m.Content)
		}
	case protocol.ServerNextContent:
		s.append(RoleContent, rawContentString(m.Content))
	case protocol.ServerResponseAnalysis:
		s.append(RoleAnalysis, rawContentString(m.Analysis))
	case protocol.ServerQuestionAnswer:
		s.append(RoleAnswer, m.Answer)
	case protocol.ServerUnknown:
		s.logger.Warn("dropping frame with unrecognized type", "type", m.Type)
	}
}

func (s *Session) handleTransportError(err error) {
	if s.turn.State() == AgentSpeaking {
		s.stopWatchdog()
		s.turn.ForceIdle()
	}
	s.emitError(err)
}

func (s *Session) handleConnState(st ConnState) {
	if s.onConnState != nil {
		s.onConnState(st)
	}
}

func (s *Session) append(role Role, content string) {
	entry := s.transcript.Append(role, content)
	if s.onEntry != nil {
		s.onEntry(entry)
	}
}

func (s *Session) emitError(err error) {
	if s.onError != nil {
		s.onError(err)
		return
	}
	s.logger.Error("session error", "session", s.id, "error", err)
}

func (s *Session) resetWatchdog() {
	if s.turnTimeout <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.watchdog != nil {
		s.watchdog.Stop()
	}
	s.watchdog = time.AfterFunc(s.turnTimeout, s.watchdogFired)
}

func (s *Session) stopWatchdog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchdog != nil {
		s.watchdog.Stop()
		s.watchdog = nil
	}
}

func (s *Session) watchdogFired() {
	if s.turn.State() != AgentSpeaking {
		return
	}
	s.turn.ForceIdle()
	s.emitError(core.NewAPIError("agent turn stalled: no completion signal received"))
}

// rawContentString renders server content for the transcript: JSON strings
// unwrap to their value, anything else keeps its raw JSON text.
func rawContentString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
