package jobs

import (
	"context"
	"time"

	"cashless/internal/metrics"
	"cashless/internal/models"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type Reconciler interface {
	Reconcile(ctx context.Context, onlyMismatched bool) ([]models.Reconciliation, error)
}

const runTimeout = 2 * time.Minute

// Scheduler runs the ledger reconciliation on a cron schedule. It only reads;
// mismatches are logged and exported, never repaired.
type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	schedule   string
	log        zerolog.Logger
}

func NewScheduler(reconciler Reconciler, schedule string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithChain(cron.Recover(cronLogger{log}))),
		reconciler: reconciler,
		schedule:   schedule,
		log:        log.With().Str("component", "reconcile").Logger(),
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.RunOnce); err != nil {
		return err
	}
	s.log.Info().Str("schedule", s.schedule).Msg("scheduled reconciliation job")
	s.cron.Start()
	return nil
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	rows, err := s.reconciler.Reconcile(ctx, true)
	if err != nil {
		s.log.Error().Err(err).Msg("reconciliation failed")
		return
	}
	metrics.SetReconciliationMismatches(len(rows))
	for _, row := range rows {
		s.log.Warn().
			Str("account_id", row.AccountID).
			Int64("balance", row.AccountBalance).
			Int64("ledger_sum", row.LedgerSum).
			Int64("difference", row.Difference).
			Msg("balance does not match ledger")
	}
	s.log.Info().Int("mismatched", len(rows)).Msg("reconciliation finished")
}

type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
