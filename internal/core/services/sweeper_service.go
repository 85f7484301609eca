package services

import (
	"context"
	"time"

	"textpesa/internal/adapters/persistence/repositories"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SweeperService runs the background maintenance jobs: purging settled
// messages from the outbox and returning abandoned challenge sessions to
// IDLE once their OTP has expired.
type SweeperService struct {
	outbox *OutboxService
	users  repositories.UserRepository
	cron   *cron.Cron
	logger *zap.SugaredLogger
}

// NewSweeperService creates the maintenance scheduler.
func NewSweeperService(outbox *OutboxService, users repositories.UserRepository, logger *zap.SugaredLogger) *SweeperService {
	return &SweeperService{
		outbox: outbox,
		users:  users,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start registers and launches the maintenance jobs.
func (s *SweeperService) Start() error {
	if _, err := s.cron.AddFunc("@every 1m", s.purgeOutbox); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 1h", s.sweepSessions); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("🚀 sweeper started")
	return nil
}

// Stop halts the scheduler, waiting for any running job to finish.
func (s *SweeperService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("🛑 sweeper stopped")
}

func (s *SweeperService) purgeOutbox() {
	if removed := s.outbox.Purge(); removed > 0 {
		s.logger.Infow("outbox purged", "removed", removed)
	}
}

func (s *SweeperService) sweepSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repaired, err := s.users.SweepStaleSessions(ctx, time.Now())
	if err != nil {
		s.logger.Errorw("session sweep failed", "error", err)
		return
	}
	if repaired > 0 {
		s.logger.Infow("stale sessions swept", "repaired", repaired)
	}
}
