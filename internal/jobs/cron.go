package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/config"
	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/domain"
	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/repo"
)

type service interface {
	CalculateMultipleMetrics(ctx context.Context, iterationIDs []string) ([]domain.Metric, error)
}

type Cron struct {
	cfg  config.Config
	log  zerolog.Logger
	svc  service
	repo *repo.Repository
	c    *cron.Cron
}

func NewCron(cfg config.Config, log zerolog.Logger, svc service, r *repo.Repository) *Cron {
	loc, _ := time.LoadLocation(cfg.TZ)
	c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
	cr := &Cron{cfg: cfg, log: log, svc: svc, repo: r, c: c}
	_, _ = c.AddFunc(cfg.SyncCron, cr.sync)
	return cr
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { cr.c.Stop() }

func (cr *Cron) sync() {
	if len(cr.cfg.IterationIDs) == 0 {
		cr.log.Info().Msg("cron: no iterations configured, skipping")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()
	const lockKey int64 = 727272
	ok, err := cr.repo.TryAdvisoryLock(ctx, lockKey)
	if err != nil {
		cr.log.Error().Err(err).Msg("cron: lock error")
		return
	}
	if !ok {
		cr.log.Info().Msg("cron: already running elsewhere")
		return
	}
	defer func() { _ = cr.repo.AdvisoryUnlock(context.Background(), lockKey) }()
	cr.log.Info().Strs("iterations", cr.cfg.IterationIDs).Msg("cron: metrics sync")
	if _, err := cr.svc.CalculateMultipleMetrics(ctx, cr.cfg.IterationIDs); err != nil {
		cr.log.Error().Err(err).Msg("cron: sync failed")
	}
}
