// Package protocol defines the JSON wire messages exchanged over a voice
// chat WebSocket connection. Audio itself travels as raw binary frames;
// everything else is a tagged JSON object keyed by the "type" field.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MessageType tags a JSON wire message.
type MessageType string

// Client to server message types.
const (
	MessageTypeAuth      MessageType = "auth"
	MessageTypeTextInput MessageType = "text_input"
	MessageTypeEndAudio  MessageType = "end_audio"
	MessageTypePing      MessageType = "ping"
)

// Server to client message types.
const (
	MessageTypeConnectionAck MessageType = "connection_ack"
	MessageTypeBuffering     MessageType = "buffering"
	MessageTypeTranscription MessageType = "transcription"
	MessageTypeResponse      MessageType = "response"
	MessageTypeError         MessageType = "error"
	MessageTypePong          MessageType = "pong"
	MessageTypeInfo          MessageType = "info"
)

// Error codes carried by ErrorMessage.
const (
	ErrCodeTranscriptionFailed = "transcription_failed"
	ErrCodeGenerationFailed    = "generation_failed"
	ErrCodeSynthesisFailed     = "synthesis_failed"
	ErrCodePipelineBusy        = "pipeline_busy"
	ErrCodeAlreadyAuthed       = "already_authenticated"
	ErrCodeBadMessage          = "bad_message"
)

// ErrUnknownType is returned by Decode for unrecognised message tags.
// Receivers must ignore such messages without closing the connection.
var ErrUnknownType = errors.New("protocol: unknown message type")

// BaseMessage is the envelope shared by every JSON wire message.
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// AuthMessage is the first message a client must send after connecting.
type AuthMessage struct {
	BaseMessage
	Token string `json:"token"`
}

// TextInputMessage carries typed user input that bypasses audio buffering.
type TextInputMessage struct {
	BaseMessage
	Content string `json:"content"`
}

// EndAudioMessage asks the server to process whatever is buffered, even if
// the buffering window has not been reached yet.
type EndAudioMessage struct {
	BaseMessage
}

// PingMessage is a client liveness probe; the server answers with a pong.
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ConnectionAckMessage confirms a successful authentication handshake.
type ConnectionAckMessage struct {
	BaseMessage
	Status    string `json:"status"`
	SessionID string `json:"session_id,omitempty"`
}

// BufferingMessage reports audio window progress after each received frame.
type BufferingMessage struct {
	BaseMessage
	BufferedSeconds float64 `json:"buffered_seconds"`
	TargetSeconds   float64 `json:"target_seconds"`
}

// TranscriptionMessage echoes what the server heard before generating a reply.
type TranscriptionMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// ResponseMessage carries the assistant's reply. Audio is base64-encoded WAV
// and is empty when synthesis failed and the turn degraded to text only.
type ResponseMessage struct {
	BaseMessage
	Text           string  `json:"text"`
	Audio          *string `json:"audio"`
	ProcessingTime float64 `json:"processing_time,omitempty"`
}

// ErrorMessage reports a turn-scoped failure; the connection stays open.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMessage answers a ping.
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// InfoMessage is a non-error notice, e.g. "no audio to process".
type InfoMessage struct {
	BaseMessage
	Message string `json:"message"`
}

// Decode parses a JSON wire message into its concrete type. Unrecognised
// tags return ErrUnknownType; malformed JSON returns a wrapped error.
func Decode(data []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON frame: %w", err)
	}

	switch base.Type {
	case MessageTypeAuth:
		var msg AuthMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid auth message: %w", err)
		}
		return &msg, nil

	case MessageTypeTextInput:
		var msg TextInputMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid text_input message: %w", err)
		}
		return &msg, nil

	case MessageTypeEndAudio:
		var msg EndAudioMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid end_audio message: %w", err)
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case MessageTypeConnectionAck:
		var msg ConnectionAckMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid connection_ack message: %w", err)
		}
		return &msg, nil

	case MessageTypeBuffering:
		var msg BufferingMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid buffering message: %w", err)
		}
		return &msg, nil

	case MessageTypeTranscription:
		var msg TranscriptionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid transcription message: %w", err)
		}
		return &msg, nil

	case MessageTypeResponse:
		var msg ResponseMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid response message: %w", err)
		}
		return &msg, nil

	case MessageTypeError:
		var msg ErrorMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid error message: %w", err)
		}
		return &msg, nil

	case MessageTypePong:
		var msg PongMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid pong message: %w", err)
		}
		return &msg, nil

	case MessageTypeInfo:
		var msg InfoMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid info message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, base.Type)
	}
}

// Encode marshals a wire message to JSON.
func Encode(msg interface{}) ([]byte, error) {
	return json.Marshal(msg)
}

func stamp(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

// NewAuth builds the handshake message for a token.
func NewAuth(token string) *AuthMessage {
	return &AuthMessage{BaseMessage: stamp(MessageTypeAuth), Token: token}
}

// NewTextInput builds a typed-input message.
func NewTextInput(content string) *TextInputMessage {
	return &TextInputMessage{BaseMessage: stamp(MessageTypeTextInput), Content: content}
}

// NewConnectionAck builds a successful handshake acknowledgement.
func NewConnectionAck(sessionID string) *ConnectionAckMessage {
	return &ConnectionAckMessage{
		BaseMessage: stamp(MessageTypeConnectionAck),
		Status:      "ok",
		SessionID:   sessionID,
	}
}

// NewBuffering builds a window progress report.
func NewBuffering(buffered, target float64) *BufferingMessage {
	return &BufferingMessage{
		BaseMessage:     stamp(MessageTypeBuffering),
		BufferedSeconds: buffered,
		TargetSeconds:   target,
	}
}

// NewTranscription builds a transcription echo.
func NewTranscription(text string) *TranscriptionMessage {
	return &TranscriptionMessage{BaseMessage: stamp(MessageTypeTranscription), Text: text}
}

// NewResponse builds an assistant reply. audio may be nil for text-only turns.
func NewResponse(text string, audio *string, processingTime float64) *ResponseMessage {
	return &ResponseMessage{
		BaseMessage:    stamp(MessageTypeResponse),
		Text:           text,
		Audio:          audio,
		ProcessingTime: processingTime,
	}
}

// NewError builds a turn-scoped error report.
func NewError(code, message string) *ErrorMessage {
	return &ErrorMessage{BaseMessage: stamp(MessageTypeError), Code: code, Message: message}
}

// NewPong answers a ping, echoing its payload.
func NewPong(data string) *PongMessage {
	return &PongMessage{BaseMessage: stamp(MessageTypePong), Data: data}
}

// NewInfo builds an informational notice.
func NewInfo(message string) *InfoMessage {
	return &InfoMessage{BaseMessage: stamp(MessageTypeInfo), Message: message}
}
