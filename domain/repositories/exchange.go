package repositories

import (
	"context"
	"time"

	"github.com/counselkit/counsel/domain/entities"
)

// ExchangeRepository defines data access methods for completed
// prompt/advice exchanges.
type ExchangeRepository interface {
	Create(ctx context.Context, exchange *entities.Exchange) error
	GetRecent(ctx context.Context, clientID string, limit int) ([]*entities.Exchange, error)
	// DeleteOlderThan prunes exchanges created before the cutoff and
	// returns the number removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
