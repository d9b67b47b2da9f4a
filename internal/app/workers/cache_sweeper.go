package workers

import (
	"context"

	"zk-attestation/internal/app/proofcache"
	"zk-attestation/pkg/logger"

	"github.com/robfig/cron"
)

const (
	cacheSweeperName     = "CacheSweeperCronWorker"
	DefaultSweepSchedule = "@every 1m"
)

type CacheSweepable interface {
	SweepExpired() int
	Stats() proofcache.Stats
}

type ChallengePurger interface {
	Purge(ctx context.Context) (int, error)
}

// CacheSweeper periodically drops expired proof cache entries and settled
// verifier challenges past their retention.
type CacheSweeper struct {
	cache    CacheSweepable
	purger   ChallengePurger
	schedule string
	cron     *cron.Cron
	logger   *logger.Logger
}

func NewCacheSweeper(cache CacheSweepable, purger ChallengePurger, schedule string, log *logger.Logger) *CacheSweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &CacheSweeper{
		cache:    cache,
		purger:   purger,
		schedule: schedule,
		cron:     cron.New(),
		logger:   log,
	}
}

func (cs *CacheSweeper) GetServiceName() string {
	return cacheSweeperName
}

func (cs *CacheSweeper) StartService(ctx context.Context) {
	err := cs.cron.AddFunc(cs.schedule, func() { cs.sweep(ctx) })
	if err != nil {
		cs.logger.Errorf(err, "Could not add function to %s", cacheSweeperName)
		return
	}

	cs.cron.Start()
	<-ctx.Done()
	cs.cron.Stop()
}

func (cs *CacheSweeper) sweep(ctx context.Context) {
	removed := cs.cache.SweepExpired()
	stats := cs.cache.Stats()
	cs.logger.Debugf("Proof cache sweep removed %d entries, %d live", removed, stats.Total-stats.Expired)

	if cs.purger == nil {
		return
	}
	purged, err := cs.purger.Purge(ctx)
	if err != nil {
		cs.logger.Error(err, "Could not purge settled challenges")
		return
	}
	if purged > 0 {
		cs.logger.Infof("Purged %d settled challenges", purged)
	}
}
