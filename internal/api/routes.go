package api

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/counselkit/counsel/domain/entities"
	"github.com/counselkit/counsel/domain/repositories"
	"github.com/counselkit/counsel/internal/auth"
	"github.com/counselkit/counsel/internal/websocket"
)

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, exchanges repositories.ExchangeRepository, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "counsel-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Client APIs
	v1.POST("/client/auth", func(c echo.Context) error {
		return clientAuth(c, logger)
	})
	v1.GET("/exchanges", func(c echo.Context) error {
		return listExchanges(c, exchanges, logger)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, c, logger)
	})
}

// clientAuth exchanges the shared access key for a JWT bound to a
// fresh client ID.
func clientAuth(c echo.Context, logger *zap.Logger) error {
	var req ClientAuthRequest

	// Bind and validate request
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind client auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.AccessKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Access key is required",
		})
	}

	expected := os.Getenv("ACCESS_KEY")
	if expected == "" || subtle.ConstantTimeCompare([]byte(req.AccessKey), []byte(expected)) != 1 {
		logger.Warn("Client authentication failed")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid access key",
		})
	}

	clientID := uuid.NewString()
	token, err := auth.GenerateClientToken(clientID)
	if err != nil {
		logger.Error("Failed to generate client token",
			zap.String("client_id", clientID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	// Calculate expiration time (24 hours from now, matching JWT claims)
	expiresAt := time.Now().Add(24 * time.Hour)

	logger.Info("Client authenticated successfully",
		zap.String("client_id", clientID))

	return c.JSON(http.StatusOK, ClientAuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		ClientID:  clientID,
	})
}

// listExchanges returns recent exchange history for the authenticated client
func listExchanges(c echo.Context, exchanges repositories.ExchangeRepository, logger *zap.Logger) error {
	claims, errResp := bearerClaims(c)
	if errResp != nil {
		return c.JSON(http.StatusUnauthorized, errResp)
	}

	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 100 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_limit",
				Message: "limit must be an integer between 1 and 100",
			})
		}
		limit = parsed
	}

	recent, err := exchanges.GetRecent(c.Request().Context(), claims.ClientID, limit)
	if err != nil {
		logger.Error("Failed to list exchanges",
			zap.String("client_id", claims.ClientID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to load exchange history",
		})
	}

	if recent == nil {
		recent = []*entities.Exchange{}
	}
	return c.JSON(http.StatusOK, ExchangeListResponse{
		Exchanges: recent,
		Count:     len(recent),
	})
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(hub *websocket.Hub, c echo.Context, logger *zap.Logger) error {
	claims, errResp := bearerClaims(c)
	if errResp != nil {
		logger.Warn("WebSocket connection rejected", zap.String("reason", errResp.Error))
		return c.JSON(http.StatusUnauthorized, errResp)
	}

	if claims.ClientID == "" {
		logger.Error("WebSocket connection rejected: missing client ID in token")
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Client ID not found in token",
		})
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("client_id", claims.ClientID))

	// Handle WebSocket connection with authenticated client ID
	return websocket.HandleWebSocketWithAuth(hub, c, claims.ClientID, logger)
}

// bearerClaims extracts and validates the JWT from the Authorization header
func bearerClaims(c echo.Context) (*auth.JWTClaims, *ErrorResponse) {
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}

	if token == "" {
		return nil, &ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header",
		}
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		return nil, &ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		}
	}

	return claims, nil
}
