package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/counselkit/counsel/usecase"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeSubmit        MessageType = "submit"
	MessageTypeStop          MessageType = "stop"
	MessageTypePing          MessageType = "ping"
	MessageTypePong          MessageType = "pong"
	MessageTypeState         MessageType = "state"
	MessageTypeSpeakingStart MessageType = "speaking_start"
	MessageTypeSpeakingEnd   MessageType = "speaking_end"
	MessageTypeError         MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// SubmitMessage carries a prompt the client wants advice on. Prompt
// content rules (blank rejection) belong to the advisor, not the
// transport, so only the envelope is validated here.
type SubmitMessage struct {
	BaseMessage
	Prompt       string `json:"prompt"`
	ThinkingMode bool   `json:"thinking_mode"`
}

// StopMessage interrupts the active speaking session, if any.
type StopMessage struct {
	BaseMessage
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// StateMessage mirrors the advisor state to the client after every
// observable change.
type StateMessage struct {
	BaseMessage
	State usecase.State `json:"state"`
}

// SpeakingStartMessage announces that binary PCM frames follow on the
// connection and describes their shape.
type SpeakingStartMessage struct {
	BaseMessage
	SampleRate int   `json:"sample_rate"`
	Channels   int   `json:"channels"`
	Frames     int   `json:"frames"`
	DurationMs int64 `json:"duration_ms"`
}

// SpeakingEndMessage tells the client no further audio will arrive for
// the current session, whether it finished or was stopped.
type SpeakingEndMessage struct {
	BaseMessage
	Interrupted bool `json:"interrupted"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage validates an incoming message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	// First parse as base message to get type
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeSubmit:
		var msg SubmitMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid submit message: %w", err)
		}
		return &msg, nil

	case MessageTypeStop:
		var msg StopMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid stop message: %w", err)
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// CreateStateMessage wraps an advisor state snapshot for the wire
func CreateStateMessage(state usecase.State) *StateMessage {
	return &StateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeState,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		State: state,
	}
}

// CreateSpeakingStartMessage describes the PCM stream that follows
func CreateSpeakingStartMessage(sampleRate, channels, frames int, duration time.Duration) *SpeakingStartMessage {
	return &SpeakingStartMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeSpeakingStart,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		SampleRate: sampleRate,
		Channels:   channels,
		Frames:     frames,
		DurationMs: duration.Milliseconds(),
	}
}

// CreateSpeakingEndMessage marks the end of the audio stream
func CreateSpeakingEndMessage(interrupted bool) *SpeakingEndMessage {
	return &SpeakingEndMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeSpeakingEnd,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Interrupted: interrupted,
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeError,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Code:    code,
		Message: message,
		Details: details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePong,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Data: data,
	}
}
