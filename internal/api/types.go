package api

import (
	"time"

	"github.com/counselkit/counsel/domain/entities"
)

// ClientAuthRequest represents the request payload for client authentication
type ClientAuthRequest struct {
	AccessKey string `json:"access_key" validate:"required"`
}

// ClientAuthResponse represents the response payload for client authentication
type ClientAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ClientID  string    `json:"client_id"`
}

// ExchangeListResponse wraps the exchange history for one client
type ExchangeListResponse struct {
	Exchanges []*entities.Exchange `json:"exchanges"`
	Count     int                  `json:"count"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
