package scheduler

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/souqhub/auction-backend/internal/service"
)

// Scheduler drives the time-based triggers: closing expired auctions,
// ending-soon notices and escrow auto-release. Every pass is idempotent, so
// overlapping or repeated runs are harmless.
type Scheduler struct {
	bidding    service.BiddingService
	settlement service.SettlementService

	interval     time.Duration
	endingWindow time.Duration
}

func New(bidding service.BiddingService, settlement service.SettlementService, interval, endingWindow time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if endingWindow <= 0 {
		endingWindow = time.Hour
	}
	return &Scheduler{
		bidding:      bidding,
		settlement:   settlement,
		interval:     interval,
		endingWindow: endingWindow,
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	log.WithField("interval", s.interval).Info("scheduler started")
	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	tctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()
	if err := s.bidding.CloseExpired(tctx); err != nil {
		log.WithError(err).Error("close expired auctions pass failed")
	}
	if err := s.bidding.NotifyEndingSoon(tctx, s.endingWindow); err != nil {
		log.WithError(err).Error("ending soon pass failed")
	}
	if err := s.settlement.ReleaseDue(tctx); err != nil {
		log.WithError(err).Error("escrow auto release pass failed")
	}
}
