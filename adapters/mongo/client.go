package mongo

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	defaultDatabase       = "counsel"
	defaultMaxPoolSize    = 10
	defaultMinPoolSize    = 1
	defaultMaxConnIdle    = 30 * time.Minute
	defaultSelectTimeout  = 5 * time.Second
	defaultConnectTimeout = 10 * time.Second
)

// MongoConfig holds configuration for the MongoDB connection. URI is
// required; the database name falls back to a default.
type MongoConfig struct {
	URI      string // Required: connection string
	Database string // Optional: database name
}

// ValidateMongoConfig validates the MongoConfig.
func ValidateMongoConfig(config MongoConfig) error {
	if config.URI == "" {
		return fmt.Errorf("MongoDB URI is required")
	}
	return nil
}

// NewMongoConfigFromEnv creates a MongoConfig from environment
// variables.
func NewMongoConfigFromEnv() MongoConfig {
	return MongoConfig{
		URI:      os.Getenv("MONGODB_URI"),
		Database: os.Getenv("MONGODB_DATABASE"),
	}
}

// Client wraps the MongoDB client and database
type Client struct {
	*mongo.Client
	Database *mongo.Database
	logger   *zap.Logger
}

// NewClient connects to MongoDB and verifies the connection with a
// ping before returning.
func NewClient(config MongoConfig, logger *zap.Logger) (*Client, error) {
	if err := ValidateMongoConfig(config); err != nil {
		return nil, err
	}

	dbName := config.Database
	if dbName == "" {
		dbName = defaultDatabase
		logger.Info("Using default database", zap.String("database", dbName))
	}

	clientOptions := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(defaultMaxPoolSize).
		SetMinPoolSize(defaultMinPoolSize).
		SetMaxConnIdleTime(defaultMaxConnIdle).
		SetServerSelectionTimeout(defaultSelectTimeout).
		SetConnectTimeout(defaultConnectTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Successfully connected to MongoDB",
		zap.String("database", dbName))

	return &Client{
		Client:   client,
		Database: client.Database(dbName),
		logger:   logger,
	}, nil
}

// Close closes the MongoDB connection
func (c *Client) Close(ctx context.Context) error {
	if err := c.Client.Disconnect(ctx); err != nil {
		c.logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		return err
	}
	c.logger.Info("Disconnected from MongoDB")
	return nil
}
