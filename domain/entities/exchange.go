package entities

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Exchange represents one completed prompt/advice round trip: the
// user's prompt, the advice text the model produced, and how the
// response was delivered.
type Exchange struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ClientID      string             `json:"client_id" bson:"client_id"`
	Prompt        string             `json:"prompt" bson:"prompt"`
	Advice        string             `json:"advice" bson:"advice"`
	ThinkingMode  bool               `json:"thinking_mode" bson:"thinking_mode"`
	Spoken        bool               `json:"spoken" bson:"spoken"`
	AudioDuration time.Duration      `json:"audio_duration_ms" bson:"audio_duration_ms"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
}

// NewExchange creates an exchange record for a finished submission.
func NewExchange(clientID, prompt, advice string, thinkingMode bool) *Exchange {
	return &Exchange{
		ID:           primitive.NewObjectID(),
		ClientID:     clientID,
		Prompt:       prompt,
		Advice:       advice,
		ThinkingMode: thinkingMode,
		CreatedAt:    time.Now(),
	}
}

// MarkSpoken records that the advice was delivered as audio of the
// given duration rather than as immediate text.
func (e *Exchange) MarkSpoken(audioDuration time.Duration) {
	e.Spoken = true
	e.AudioDuration = audioDuration
}

// Validate validates the exchange data.
func (e *Exchange) Validate() error {
	if e.Prompt == "" {
		return errors.New("prompt is required")
	}
	if e.Advice == "" {
		return errors.New("advice is required")
	}
	return nil
}
