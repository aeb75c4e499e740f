// Package protocol defines the JSON wire protocol spoken over the live
// session websocket, covering both the interview and training variants.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Outbound message type tags (client -> server).
const (
	TypeUserMessage  = "user_message"
	TypeInterrupt    = "interrupt"
	TypeResume       = "resume"
	TypeStartLesson  = "start_lesson"
	TypeUserResponse = "user_response"
	TypeQuestion     = "question"
)

// Inbound message type tags (server -> client).
const (
	TypeAIResponse  = "ai_response"
	TypeAIDone      = "ai_done"
	TypeAudio       = "audio"
	TypeError       = "error"
	TypeInterrupted = "interrupted"
	TypeResumed     = "resumed"
	// The training backend acknowledges with distinct confirmation tags.
	TypeInterruptConfirmation = "interrupt_confirmation"
	TypeResumeConfirmation    = "resume_confirmation"
	TypeLessonContent         = "lesson_content"
	TypeResponseAnalysis      = "response_analysis"
	TypeNextContent           = "next_content"
	TypeQuestionAnswer        = "question_answer"
)

// DecodeError describes an inbound frame that could not be decoded.
type DecodeError struct {
	Message string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func malformed(format string, args ...any) *DecodeError {
	return &DecodeError{Message: fmt.Sprintf(format, args...)}
}

// ClientMessage is an outbound frame. Implementations marshal to a tagged
// JSON object with a "type" field.
type ClientMessage interface {
	clientMessageType() string
}

// ClientUserMessage submits free-form candidate text during an interview.
type ClientUserMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (m ClientUserMessage) clientMessageType() string { return TypeUserMessage }

// ClientInterrupt asks the server to stop the in-progress agent turn.
type ClientInterrupt struct {
	Type string `json:"type"`
}

func (m ClientInterrupt) clientMessageType() string { return TypeInterrupt }

// ClientResume asks the server to continue after an interrupt.
type ClientResume struct {
	Type string `json:"type"`
}

func (m ClientResume) clientMessageType() string { return TypeResume }

// ClientStartLesson begins a training lesson (training variant).
type ClientStartLesson struct {
	Type     string `json:"type"`
	LessonID string `json:"lesson_id"`
}

func (m ClientStartLesson) clientMessageType() string { return TypeStartLesson }

// ClientUserResponse submits a lesson response, optionally with recorded
// audio (training variant).
type ClientUserResponse struct {
	Type      string `json:"type"`
	Response  string `json:"response"`
	AudioData []byte `json:"audio_data,omitempty"`
}

func (m ClientUserResponse) clientMessageType() string { return TypeUserResponse }

// ClientQuestion asks a free-form question about the lesson (training variant).
type ClientQuestion struct {
	Type     string `json:"type"`
	Question string `json:"question"`
}

func (m ClientQuestion) clientMessageType() string { return TypeQuestion }

// NewUserMessage builds a tagged user_message frame.
func NewUserMessage(content string) ClientUserMessage {
	return ClientUserMessage{Type: TypeUserMessage, Content: content}
}

// NewInterrupt builds a tagged interrupt frame.
func NewInterrupt() ClientInterrupt {
	return ClientInterrupt{Type: TypeInterrupt}
}

// NewResume builds a tagged resume frame.
func NewResume() ClientResume {
	return ClientResume{Type: TypeResume}
}

// NewStartLesson builds a tagged start_lesson frame.
func NewStartLesson(lessonID string) ClientStartLesson {
	return ClientStartLesson{Type: TypeStartLesson, LessonID: lessonID}
}

// NewUserResponse builds a tagged user_response frame.
func NewUserResponse(response string, audio []byte) ClientUserResponse {
	return ClientUserResponse{Type: TypeUserResponse, Response: response, AudioData: audio}
}

// NewQuestion builds a tagged question frame.
func NewQuestion(question string) ClientQuestion {
	return ClientQuestion{Type: TypeQuestion, Question: question}
}

// ServerMessage is a decoded inbound frame.
type ServerMessage interface {
	serverMessageType() string
}

// ServerAIResponse begins or continues an agent turn with text content.
type ServerAIResponse struct {
	Content string `json:"content"`
}

func (m ServerAIResponse) serverMessageType() string { return TypeAIResponse }

// ServerAIDone ends the current agent turn.
type ServerAIDone struct{}

func (m ServerAIDone) serverMessageType() string { return TypeAIDone }

// ServerAudioChunk carries one binary audio segment of the agent turn.
type ServerAudioChunk struct {
	Data []byte `json:"-"`
}

func (m ServerAudioChunk) serverMessageType() string { return TypeAudio }

// ServerError carries a server-side error message.
type ServerError struct {
	Message string `json:"message"`
}

func (m ServerError) serverMessageType() string { return TypeError }

// ServerInterrupted acknowledges a client interrupt. The interview endpoint
// tags it "interrupted", the training endpoint "interrupt_confirmation".
type ServerInterrupted struct{}

func (m ServerInterrupted) serverMessageType() string { return TypeInterrupted }

// ServerResumed acknowledges a client resume ("resumed" or
// "resume_confirmation" on the wire).
type ServerResumed struct{}

func (m ServerResumed) serverMessageType() string { return TypeResumed }

// ServerLessonContent delivers the opening content of a lesson.
type ServerLessonContent struct {
	Content json.RawMessage `json:"content"`
}

func (m ServerLessonContent) serverMessageType() string { return TypeLessonContent }

// ServerResponseAnalysis delivers analysis of a submitted lesson response.
type ServerResponseAnalysis struct {
	Analysis json.RawMessage `json:"analysis"`
}

func (m ServerResponseAnalysis) serverMessageType() string { return TypeResponseAnalysis }

// ServerNextContent delivers the next block of lesson content.
type ServerNextContent struct {
	Content json.RawMessage `json:"content"`
}

func (m ServerNextContent) serverMessageType() string { return TypeNextContent }

// ServerQuestionAnswer answers a lesson question.
type ServerQuestionAnswer struct {
	Answer string `json:"answer"`
}

func (m ServerQuestionAnswer) serverMessageType() string { return TypeQuestionAnswer }

// ServerUnknown preserves a frame whose type tag is not recognized.
// Callers log and drop these; they never fail the pipeline.
type ServerUnknown struct {
	Type string
	Raw  json.RawMessage
}

func (m ServerUnknown) serverMessageType() string { return m.Type }

// MessageType returns the wire type tag of a decoded server message.
func MessageType(m ServerMessage) string {
	if m == nil {
		return ""
	}
	return m.serverMessageType()
}

// EncodeClientMessage marshals an outbound frame.
func EncodeClientMessage(m ClientMessage) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("client message must not be nil")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", m.clientMessageType(), err)
	}
	return data, nil
}

// DecodeServerMessage decodes one inbound text frame into its tagged variant.
//
// Audio is special: the interview backend ships it as a text frame with a
// base64 "audio" field, with or without a type tag, so any frame carrying an
// audio field decodes to ServerAudioChunk.
func DecodeServerMessage(data []byte) (ServerMessage, error) {
	var envelope struct {
		Type  string `json:"type"`
		Audio string `json:"audio"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, malformed("decode frame envelope: %v", err)
	}

	if strings.TrimSpace(envelope.Audio) != "" {
		audio, err := base64.StdEncoding.DecodeString(envelope.Audio)
		if err != nil {
			return nil, malformed("decode audio payload: %v", err)
		}
		return ServerAudioChunk{Data: audio}, nil
	}

	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, malformed("frame missing type")
	}

	switch typ {
	case TypeAIResponse:
		var m ServerAIResponse
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, malformed("decode ai_response: %v", err)
		}
		return m, nil
	case TypeAIDone:
		return ServerAIDone{}, nil
	case TypeError:
		var m ServerError
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, malformed("decode error frame: %v", err)
		}
		return m, nil
	case TypeInterrupted, TypeInterruptConfirmation:
		return ServerInterrupted{}, nil
	case TypeResumed, TypeResumeConfirmation:
		return ServerResumed{}, nil
	case TypeLessonContent:
		var m ServerLessonContent
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, malformed("decode lesson_content: %v", err)
		}
		return m, nil
	case TypeResponseAnalysis:
		var m ServerResponseAnalysis
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, malformed("decode response_analysis: %v", err)
		}
		return m, nil
	case TypeNextContent:
		var m ServerNextContent
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, malformed("decode next_content: %v", err)
		}
		return m, nil
	case TypeQuestionAnswer:
		var m ServerQuestionAnswer
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, malformed("decode question_answer: %v", err)
		}
		return m, nil
	default:
		return ServerUnknown{
			Type: typ,
			Raw:  append(json.RawMessage(nil), data...),
		}, nil
	}
}

// DecodeBinaryFrame wraps a binary websocket frame as an audio segment.
// The training endpoint can push raw audio frames instead of base64 JSON.
func DecodeBinaryFrame(data []byte) ServerMessage {
	return ServerAudioChunk{Data: append([]byte(nil), data...)}
}
