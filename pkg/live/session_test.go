package live

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mrchandrayee/interview-practice/pkg/core"
	"github.com/mrchandrayee/interview-practice/pkg/live/protocol"
)

// fakeConn stands in for a Reconnector: the test injects server frames and
// transport errors and inspects what the session sent.
type fakeConn struct {
	mu           sync.Mutex
	state        ConnState
	sent         []protocol.ClientMessage
	sendErr      error
	connectCalls int
	closeCalls   int

	msgFn   func(protocol.ServerMessage)
	errFn   func(error)
	stateFn func(ConnState)
}

func newFakeConn() *fakeConn {
	return &fakeConn{state: StateConnected}
}

func (c *fakeConn) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectCalls++
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
}

func (c *fakeConn) Send(msg protocol.ClientMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeConn) OnStateChange(fn func(ConnState)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateFn = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.stateFn = nil
	}
}

func (c *fakeConn) OnMessage(fn func(protocol.ServerMessage)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgFn = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.msgFn = nil
	}
}

func (c *fakeConn) OnError(fn func(error)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errFn = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.errFn = nil
	}
}

func (c *fakeConn) push(msg protocol.ServerMessage) {
	c.mu.Lock()
	fn := c.msgFn
	c.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

func (c *fakeConn) pushErr(err error) {
	c.mu.Lock()
	fn := c.errFn
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (c *fakeConn) sentFrames() []protocol.ClientMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.ClientMessage(nil), c.sent...)
}

func newTestSession(t *testing.T, variant Variant, conn *fakeConn, mutate func(*SessionConfig)) *Session {
	t.Helper()

	cfg := SessionConfig{
		Variant:   variant,
		SessionID: "sess-1",
		Conn:      conn,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession error: %v", err)
	}
	s.Start()
	t.Cleanup(s.Close)
	return s
}

func TestSession_RejectsSubmissionWhileAgentSpeaking(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	s := newTestSession(t, VariantInterview, conn, nil)

	conn.push(protocol.ServerAIResponse{Content: "tell me about a hard bug"})

	if s.AgentState() != AgentSpeaking {
		t.Fatalf("state=%v, want %v", s.AgentState(), AgentSpeaking)
	}
	err := s.SendMessage("it was a race condition")
	if err == nil {
		t.Fatalf("expected rejection while agent speaking")
	}
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrInvalidRequest {
		t.Fatalf("error=%v, want invalid request", err)
	}
	if frames := conn.sentFrames(); len(frames) != 0 {
		t.Fatalf("frames sent despite rejection: %v", frames)
	}

	// The rejected submission leaves no transcript trace.
	entries := s.Transcript()
	if len(entries) != 1 || entries[0].Role != RoleInterviewer {
		t.Fatalf("transcript=%v, want only the interviewer entry", entries)
	}
}

func TestSession_SendMessageAppendsCandidateEntry(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	var entries []Entry
	var mu sync.Mutex
	s := newTestSession(t, VariantInterview, conn, func(cfg *SessionConfig) {
		cfg.OnEntry = func(e Entry) {
			mu.Lock()
			entries = append(entries, e)
			mu.Unlock()
		}
	})

	if err := s.SendMessage("hello"); err != nil {
		t.Fatalf("SendMessage error: %v", err)
	}

	frames := conn.sentFrames()
	if len(frames) != 1 {
		t.Fatalf("frames=%d, want 1", len(frames))
	}
	um, ok := frames[0].(protocol.ClientUserMessage)
	if !ok || um.Content != "hello" || um.Type != protocol.TypeUserMessage {
		t.Fatalf("frame=%#v, want user_message hello", frames[0])
	}

	mu.Lock()
	defer mu.Unlock()
	if len(entries) != 1 || entries[0].Role != RoleCandidate || entries[0].Content != "hello" {
		t.Fatalf("entries=%v, want one candidate entry", entries)
	}
}

func TestSession_SendFailureSkipsTranscript(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	conn.sendErr = core.NewConnectionError("broken pipe")
	s := newTestSession(t, VariantInterview, conn, nil)

	if err := s.SendMessage("hello"); err == nil {
		t.Fatalf("expected send error")
	}
	if n := len(s.Transcript()); n != 0 {
		t.Fatalf("transcript len=%d after failed send, want 0", n)
	}
}

func TestSession_TurnLifecycle(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	var states []AgentState
	var mu sync.Mutex
	s := newTestSession(t, VariantInterview, conn, func(cfg *SessionConfig) {
		cfg.OnAgentState = func(st AgentState) {
			mu.Lock()
			states = append(states, st)
			mu.Unlock()
		}
	})

	conn.push(protocol.ServerAIResponse{Content: "question one"})
	conn.push(protocol.ServerAudioChunk{Data: []byte{1, 2}})
	conn.push(protocol.ServerAIDone{})

	if s.AgentState() != AgentIdle {
		t.Fatalf("state=%v after ai_done, want idle", s.AgentState())
	}
	if !s.CanSubmit() {
		t.Fatalf("submission must be permitted after the turn ends")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []AgentState{AgentSpeaking, AgentIdle}
	if len(states) != len(want) || states[0] != want[0] || states[1] != want[1] {
		t.Fatalf("states=%v, want %v", states, want)
	}
}

func TestSession_InterruptStopsAudioAndNotifiesServer(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	release := make(chan struct{})
	cancelled := make(chan struct{}, 1)
	started := make(chan struct{}, 8)
	s := newTestSession(t, VariantInterview, conn, func(cfg *SessionConfig) {
		cfg.Player = PlayerFunc(func(ctx context.Context, pcm []byte) error {
			started <- struct{}{}
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				cancelled <- struct{}{}
				return ctx.Err()
			}
		})
	})

	conn.push(protocol.ServerAudioChunk{Data: []byte("seg-1")})
	conn.push(protocol.ServerAudioChunk{Data: []byte("seg-2")})
	conn.push(protocol.ServerAudioChunk{Data: []byte("seg-3")})
	<-started

	if err := s.Interrupt(); err != nil {
		t.Fatalf("Interrupt error: %v", err)
	}

	select {
	case <-cancelled:
	case <-time.After(3 * time.Second):
		t.Fatalf("in-flight playback was not cancelled")
	}
	if s.AgentState() != AgentInterrupted {
		t.Fatalf("state=%v, want %v", s.AgentState(), AgentInterrupted)
	}

	frames := conn.sentFrames()
	if len(frames) != 1 {
		t.Fatalf("frames=%d, want 1", len(frames))
	}
	if _, ok := frames[0].(protocol.ClientInterrupt); !ok {
		t.Fatalf("frame=%#v, want interrupt", frames[0])
	}

	// Interrupting again is rejected: no turn is in progress.
	if err := s.Interrupt(); err == nil {
		t.Fatalf("expected rejection for second interrupt")
	}
}

func TestSession_ResumeOnlyWhenInterrupted(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	s := newTestSession(t, VariantInterview, conn, nil)

	if err := s.Resume(); err == nil {
		t.Fatalf("expected rejection for resume while idle")
	}

	conn.push(protocol.ServerAIResponse{Content: "..."})
	if err := s.Interrupt(); err != nil {
		t.Fatalf("Interrupt error: %v", err)
	}
	if err := s.Resume(); err != nil {
		t.Fatalf("Resume error: %v", err)
	}
	if s.AgentState() != AgentIdle {
		t.Fatalf("state=%v after resume, want idle", s.AgentState())
	}

	frames := conn.sentFrames()
	if len(frames) != 2 {
		t.Fatalf("frames=%d, want interrupt+resume", len(frames))
	}
	if _, ok := frames[1].(protocol.ClientResume); !ok {
		t.Fatalf("frame=%#v, want resume", frames[1])
	}
}

func TestSession_ServerErrorForcesIdle(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	errCh := make(chan error, 1)
	s := newTestSession(t, VariantInterview, conn, func(cfg *SessionConfig) {
		cfg.OnError = func(err error) {
			select {
			case errCh <- err:
			default:
			}
		}
	})

	conn.push(protocol.ServerAIResponse{Content: "..."})
	conn.push(protocol.ServerError{Message: "model unavailable"})

	if s.AgentState() != AgentIdle {
		t.Fatalf("state=%v after server error, want idle", s.AgentState())
	}
	select {
	case err := <-errCh:
		var coreErr *core.Error
		if !errors.As(err, &coreErr) || coreErr.Type != core.ErrAPI {
			t.Fatalf("error=%v, want api error", err)
		}
	default:
		t.Fatalf("server error was not surfaced")
	}
}

func TestSession_TransportErrorForcesIdle(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	errCh := make(chan error, 1)
	s := newTestSession(t, VariantInterview, conn, func(cfg *SessionConfig) {
		cfg.OnError = func(err error) {
			select {
			case errCh <- err:
			default:
			}
		}
	})

	conn.push(protocol.ServerAIResponse{Content: "..."})
	conn.pushErr(core.NewConnectionError("read frame: reset"))

	if s.AgentState() != AgentIdle {
		t.Fatalf("state=%v after transport error, want idle", s.AgentState())
	}
	select {
	case <-errCh:
	default:
		t.Fatalf("transport error was not surfaced")
	}
}

func TestSession_TrainingRouting(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	lessonCh := make(chan json.RawMessage, 1)
	s := newTestSession(t, VariantTraining, conn, func(cfg *SessionConfig) {
		cfg.OnLesson = func(content json.RawMessage) { lessonCh <- content }
	})

	conn.push(protocol.ServerLessonContent{Content: json.RawMessage(`{"title":"STAR method"}`)})
	conn.push(protocol.ServerNextContent{Content: json.RawMessage(`"practice scenario"`)})
	conn.push(protocol.ServerResponseAnalysis{Analysis: json.RawMessage(`{"score":4}`)})
	conn.push(protocol.ServerQuestionAnswer{Answer: "use concrete metrics"})

	select {
	case content := <-lessonCh:
		if string(content) != `{"title":"STAR method"}` {
			t.Fatalf("lesson=%s", content)
		}
	default:
		t.Fatalf("lesson content callback did not fire")
	}
	if got := string(s.CurrentLesson()); got != `{"title":"STAR method"}` {
		t.Fatalf("CurrentLesson=%s", got)
	}

	entries := s.Transcript()
	if len(entries) != 3 {
		t.Fatalf("transcript len=%d, want 3", len(entries))
	}
	if entries[0].Role != RoleContent || entries[0].Content != "practice scenario" {
		t.Fatalf("entry[0]=%v", entries[0])
	}
	if entries[1].Role != RoleAnalysis || entries[1].Content != `{"score":4}` {
		t.Fatalf("entry[1]=%v", entries[1])
	}
	if entries[2].Role != RoleAnswer || entries[2].Content != "use concrete metrics" {
		t.Fatalf("entry[2]=%v", entries[2])
	}
}

func TestSession_TrainingOperations(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	s := newTestSession(t, VariantTraining, conn, nil)

	if err := s.StartLesson("lesson-42"); err != nil {
		t.Fatalf("StartLesson error: %v", err)
	}
	if err := s.SubmitResponse("my answer", []byte{9, 9}); err != nil {
		t.Fatalf("SubmitResponse error: %v", err)
	}
	if err := s.AskQuestion("what is STAR?"); err != nil {
		t.Fatalf("AskQuestion error: %v", err)
	}

	frames := conn.sentFrames()
	if len(frames) != 3 {
		t.Fatalf("frames=%d, want 3", len(frames))
	}
	if sl, ok := frames[0].(protocol.ClientStartLesson); !ok || sl.LessonID != "lesson-42" {
		t.Fatalf("frame[0]=%#v", frames[0])
	}
	if ur, ok := frames[1].(protocol.ClientUserResponse); !ok || ur.Response != "my answer" {
		t.Fatalf("frame[1]=%#v", frames[1])
	}
	if q, ok := frames[2].(protocol.ClientQuestion); !ok || q.Question != "what is STAR?" {
		t.Fatalf("frame[2]=%#v", frames[2])
	}

	// And the interview operation is refused on a training session.
	if err := s.SendMessage("hello"); err == nil {
		t.Fatalf("expected rejection of user_message on training session")
	}
}

func TestSession_VariantGuards(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	s := newTestSession(t, VariantInterview, conn, nil)

	if err := s.StartLesson("l"); err == nil {
		t.Fatalf("expected rejection of start_lesson on interview session")
	}
	if err := s.SubmitResponse("r", nil); err == nil {
		t.Fatalf("expected rejection of user_response on interview session")
	}
	if err := s.AskQuestion("q"); err == nil {
		t.Fatalf("expected rejection of question on interview session")
	}
	if frames := conn.sentFrames(); len(frames) != 0 {
		t.Fatalf("frames sent despite variant rejection: %v", frames)
	}
}

func TestSession_OperationsRequireConnection(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	conn.state = StateDisconnected
	s := newTestSession(t, VariantInterview, conn, nil)

	if err := s.SendMessage("hello"); err == nil {
		t.Fatalf("expected rejection while disconnected")
	}
	if err := s.Interrupt(); err == nil {
		t.Fatalf("expected rejection while disconnected")
	}
	if err := s.Resume(); err == nil {
		t.Fatalf("expected rejection while disconnected")
	}
}

func TestSession_UnknownFrameIsDropped(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	s := newTestSession(t, VariantInterview, conn, nil)

	conn.push(protocol.ServerUnknown{Type: "telemetry", Raw: json.RawMessage(`{"type":"telemetry"}`)})

	if s.AgentState() != AgentIdle {
		t.Fatalf("state=%v, want idle", s.AgentState())
	}
	if n := len(s.Transcript()); n != 0 {
		t.Fatalf("transcript len=%d, want 0", n)
	}
}

func TestSession_WatchdogForcesIdleOnStalledTurn(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	errCh := make(chan error, 1)
	s := newTestSession(t, VariantInterview, conn, func(cfg *SessionConfig) {
		cfg.TurnTimeout = 30 * time.Millisecond
		cfg.OnError = func(err error) {
			select {
			case errCh <- err:
			default:
			}
		}
	})

	conn.push(protocol.ServerAIResponse{Content: "..."})

	waitFor(t, "watchdog to fire", func() bool { return s.AgentState() == AgentIdle })
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatalf("watchdog did not surface an error")
	}
}

func TestSession_WatchdogQuietAfterCompletedTurn(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	errCh := make(chan error, 1)
	s := newTestSession(t, VariantInterview, conn, func(cfg *SessionConfig) {
		cfg.TurnTimeout = 30 * time.Millisecond
		cfg.OnError = func(err error) {
			select {
			case errCh <- err:
			default:
			}
		}
	})

	conn.push(protocol.ServerAIResponse{Content: "..."})
	conn.push(protocol.ServerAIDone{})

	time.Sleep(80 * time.Millisecond)
	select {
	case err := <-errCh:
		t.Fatalf("watchdog fired after completed turn: %v", err)
	default:
	}
	if s.AgentState() != AgentIdle {
		t.Fatalf("state=%v, want idle", s.AgentState())
	}
}

func TestSession_CloseIsIdempotentAndTearsDown(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	s := newTestSession(t, VariantInterview, conn, nil)

	s.Close()
	s.Close()

	conn.mu.Lock()
	closes := conn.closeCalls
	conn.mu.Unlock()
	if closes != 1 {
		t.Fatalf("conn closes=%d, want 1", closes)
	}

	// Frames after Close fall on deaf ears: the handlers are unsubscribed.
	conn.push(protocol.ServerAIResponse{Content: "late"})
	if n := len(s.Transcript()); n != 0 {
		t.Fatalf("transcript len=%d after close, want 0", n)
	}
}

func TestNewSession_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewSession(SessionConfig{Variant: VariantInterview, Conn: newFakeConn()}); err == nil {
		t.Fatalf("expected error for missing session id")
	}
	if _, err := NewSession(SessionConfig{Variant: "karaoke", SessionID: "s", Conn: newFakeConn()}); err == nil {
		t.Fatalf("expected error for unknown variant")
	}
	if _, err := NewSession(SessionConfig{Variant: VariantTraining, SessionID: "s"}); err == nil {
		t.Fatalf("expected error for nil connection")
	}
}
