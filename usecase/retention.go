package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/counselkit/counsel/domain/repositories"
)

// DefaultRetentionPeriod is how long exchanges are kept before the
// pruning pass removes them.
const DefaultRetentionPeriod = 30 * 24 * time.Hour

// RetentionService prunes old exchanges in the background.
type RetentionService struct {
	exchanges repositories.ExchangeRepository
	period    time.Duration
	logger    *zap.Logger
	stopChan  chan struct{}
}

// NewRetentionService creates a new retention service. A non-positive
// period falls back to the default.
func NewRetentionService(exchanges repositories.ExchangeRepository, period time.Duration, logger *zap.Logger) *RetentionService {
	if period <= 0 {
		period = DefaultRetentionPeriod
	}
	return &RetentionService{
		exchanges: exchanges,
		period:    period,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the background pruning process
func (s *RetentionService) Start() {
	go s.pruneLoop()
	s.logger.Info("Exchange retention service started",
		zap.Duration("retentionPeriod", s.period))
}

// Stop gracefully stops the retention service
func (s *RetentionService) Stop() {
	close(s.stopChan)
	s.logger.Info("Exchange retention service stopped")
}

// pruneLoop runs the pruning process periodically
func (s *RetentionService) pruneLoop() {
	// Run pruning every 30 minutes
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	// Run initial pruning after 1 minute
	initialTimer := time.NewTimer(1 * time.Minute)
	defer initialTimer.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-initialTimer.C:
			s.runPrune()
			// Initial timer only runs once
		case <-ticker.C:
			s.runPrune()
		}
	}
}

// runPrune performs the actual deletion of expired exchanges
func (s *RetentionService) runPrune() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.period)
	deleted, err := s.exchanges.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to prune expired exchanges", zap.Error(err))
		return
	}

	if deleted > 0 {
		s.logger.Info("Pruned expired exchanges", zap.Int64("deleted", deleted))
	}
}
