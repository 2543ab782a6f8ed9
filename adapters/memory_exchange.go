package adapters

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/counselkit/counsel/domain/entities"
	"github.com/counselkit/counsel/domain/repositories"
)

// MemoryExchangeRepository keeps exchanges in memory. It is used when
// no MongoDB connection is configured, and by tests.
type MemoryExchangeRepository struct {
	mu        sync.RWMutex
	exchanges []*entities.Exchange
}

// NewMemoryExchangeRepository creates a new in-memory exchange repository
func NewMemoryExchangeRepository() repositories.ExchangeRepository {
	return &MemoryExchangeRepository{}
}

// Create implements repositories.ExchangeRepository
func (r *MemoryExchangeRepository) Create(ctx context.Context, exchange *entities.Exchange) error {
	if exchange == nil {
		return errors.New("exchange cannot be nil")
	}
	if err := exchange.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if exchange.CreatedAt.IsZero() {
		exchange.CreatedAt = time.Now()
	}
	if exchange.ID.IsZero() {
		exchange.ID = primitive.NewObjectID()
	}

	stored := *exchange
	r.exchanges = append(r.exchanges, &stored)
	return nil
}

// GetRecent implements repositories.ExchangeRepository
func (r *MemoryExchangeRepository) GetRecent(ctx context.Context, clientID string, limit int) ([]*entities.Exchange, error) {
	if clientID == "" {
		return nil, errors.New("client ID cannot be empty")
	}
	if limit <= 0 {
		limit = 20
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*entities.Exchange
	for _, exchange := range r.exchanges {
		if exchange.ClientID == clientID {
			copied := *exchange
			matched = append(matched, &copied)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// DeleteOlderThan implements repositories.ExchangeRepository
func (r *MemoryExchangeRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []*entities.Exchange
	var deleted int64
	for _, exchange := range r.exchanges {
		if exchange.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, exchange)
	}

	r.exchanges = kept
	return deleted, nil
}
