package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/counselkit/counsel/domain/entities"
	"github.com/counselkit/counsel/domain/repositories"
)

type ExchangeRepository struct {
	collection *mongo.Collection
}

// NewExchangeRepository creates a new MongoDB exchange repository
func NewExchangeRepository(db *mongo.Database) repositories.ExchangeRepository {
	return &ExchangeRepository{
		collection: db.Collection("exchanges"),
	}
}

// Create implements repositories.ExchangeRepository
func (r *ExchangeRepository) Create(ctx context.Context, exchange *entities.Exchange) error {
	if exchange == nil {
		return errors.New("exchange cannot be nil")
	}
	if err := exchange.Validate(); err != nil {
		return err
	}

	if exchange.CreatedAt.IsZero() {
		exchange.CreatedAt = time.Now()
	}
	if exchange.ID.IsZero() {
		exchange.ID = primitive.NewObjectID()
	}

	if _, err := r.collection.InsertOne(ctx, exchange); err != nil {
		return fmt.Errorf("failed to create exchange: %w", err)
	}

	return nil
}

// GetRecent implements repositories.ExchangeRepository
func (r *ExchangeRepository) GetRecent(ctx context.Context, clientID string, limit int) ([]*entities.Exchange, error) {
	if clientID == "" {
		return nil, errors.New("client ID cannot be empty")
	}
	if limit <= 0 {
		limit = 20
	}

	filter := bson.M{"client_id": clientID}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges for client %s: %w", clientID, err)
	}
	defer cursor.Close(ctx)

	var exchanges []*entities.Exchange
	if err := cursor.All(ctx, &exchanges); err != nil {
		return nil, fmt.Errorf("failed to decode exchanges: %w", err)
	}

	return exchanges, nil
}

// DeleteOlderThan implements repositories.ExchangeRepository
func (r *ExchangeRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{"created_at": bson.M{"$lt": cutoff}}

	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired exchanges: %w", err)
	}

	return result.DeletedCount, nil
}
