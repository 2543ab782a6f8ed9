package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/counselkit/counsel/usecase"
)

func TestMessageValidator_ValidateSubmit(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name    string
		message string
		wantErr bool
	}{
		{
			name: "valid submit",
			message: `{
				"type": "submit",
				"prompt": "Should I take an umbrella today?",
				"thinking_mode": false
			}`,
			wantErr: false,
		},
		{
			name: "submit with thinking mode",
			message: `{
				"type": "submit",
				"prompt": "Plan my week",
				"thinking_mode": true
			}`,
			wantErr: false,
		},
		{
			name:    "not JSON",
			message: `submit please`,
			wantErr: true,
		},
		{
			name:    "unsupported type",
			message: `{"type": "listening_start"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.ValidateMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageValidator_SubmitFields(t *testing.T) {
	validator := NewMessageValidator()

	parsed, err := validator.ValidateMessage([]byte(`{
		"type": "submit",
		"prompt": "will it rain",
		"thinking_mode": true
	}`))
	if err != nil {
		t.Fatalf("ValidateMessage() error = %v", err)
	}

	msg, ok := parsed.(*SubmitMessage)
	if !ok {
		t.Fatalf("ValidateMessage() returned %T, want *SubmitMessage", parsed)
	}
	if msg.Prompt != "will it rain" {
		t.Errorf("Prompt = %q, want %q", msg.Prompt, "will it rain")
	}
	if !msg.ThinkingMode {
		t.Error("ThinkingMode = false, want true")
	}
}

func TestMessageValidator_StopAndPing(t *testing.T) {
	validator := NewMessageValidator()

	parsed, err := validator.ValidateMessage([]byte(`{"type": "stop"}`))
	if err != nil {
		t.Fatalf("ValidateMessage(stop) error = %v", err)
	}
	if _, ok := parsed.(*StopMessage); !ok {
		t.Errorf("ValidateMessage(stop) returned %T, want *StopMessage", parsed)
	}

	parsed, err = validator.ValidateMessage([]byte(`{"type": "ping", "data": "hi"}`))
	if err != nil {
		t.Fatalf("ValidateMessage(ping) error = %v", err)
	}
	ping, ok := parsed.(*PingMessage)
	if !ok {
		t.Fatalf("ValidateMessage(ping) returned %T, want *PingMessage", parsed)
	}
	if ping.Data != "hi" {
		t.Errorf("ping.Data = %q, want %q", ping.Data, "hi")
	}
}

func TestCreateStateMessage(t *testing.T) {
	state := usecase.State{
		Speaking:      true,
		DisplayedText: "Aye, ",
	}

	msg := CreateStateMessage(state)
	if msg.Type != MessageTypeState {
		t.Errorf("Type = %q, want %q", msg.Type, MessageTypeState)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded StateMessage
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !decoded.State.Speaking {
		t.Error("decoded Speaking = false, want true")
	}
	if decoded.State.DisplayedText != "Aye, " {
		t.Errorf("decoded DisplayedText = %q, want %q", decoded.State.DisplayedText, "Aye, ")
	}
}

func TestCreateSpeakingStartMessage(t *testing.T) {
	msg := CreateSpeakingStartMessage(24000, 1, 16800, 700*time.Millisecond)
	if msg.Type != MessageTypeSpeakingStart {
		t.Errorf("Type = %q, want %q", msg.Type, MessageTypeSpeakingStart)
	}
	if msg.SampleRate != 24000 || msg.Channels != 1 || msg.Frames != 16800 {
		t.Errorf("stream shape = %d/%d/%d, want 24000/1/16800", msg.SampleRate, msg.Channels, msg.Frames)
	}
	if msg.DurationMs != 700 {
		t.Errorf("DurationMs = %d, want 700", msg.DurationMs)
	}
}
