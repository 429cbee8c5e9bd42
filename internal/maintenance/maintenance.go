// Package maintenance registers the query-engine's recurring background
// jobs on a gocron scheduler: registry garbage collection, a
// footer-repair sweep over trace files whose footer failed validation,
// a cache-eviction sweep, and a bundle-artifact compression sweep.
package maintenance

import (
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/adatrace/ada-trace/internal/cache"
	"github.com/adatrace/ada-trace/internal/registry"
	"github.com/adatrace/ada-trace/internal/state"
	"github.com/adatrace/ada-trace/pkg/log"
)

// Scheduler wraps the process-wide gocron instance.
type Scheduler struct {
	s       gocron.Scheduler
	watcher *FinalizationWatcher
}

// Start creates and starts a scheduler with the jobs registered against
// it; call Shutdown on process exit.
func Start(store *state.Store, reg *registry.Registry, traceCache *cache.Cache, sweeper FooterSweeper) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	m := &Scheduler{s: s}
	m.registerRegistryGC(store, reg)
	m.registerFooterRepairSweep(sweeper)
	m.registerCacheEvictionSweep(store, traceCache)
	m.registerArtifactCompressionSweep(store)

	s.Start()
	return m, nil
}

// Shutdown stops the scheduler, waiting for any in-flight job to finish.
func (m *Scheduler) Shutdown() error {
	if m == nil || m.s == nil {
		return nil
	}
	if m.watcher != nil {
		m.watcher.Close()
	}
	return m.s.Shutdown()
}

func scheduleHourly(m *Scheduler, task func()) (gocron.Job, error) {
	return m.s.NewJob(gocron.DurationJob(time.Hour), gocron.NewTask(task))
}

func (m *Scheduler) registerRegistryGC(store *state.Store, reg *registry.Registry) {
	if store == nil || reg == nil {
		return
	}
	log.Info("maintenance: registering registry GC job")
	if _, err := m.s.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			if err := store.GCOrphans(); err != nil {
				log.Warnf("maintenance: sidecar GC failed: %v", err)
				return
			}
			sessions, err := store.List()
			if err != nil {
				log.Warnf("maintenance: listing sidecar sessions failed: %v", err)
				return
			}
			if err := reg.Reconcile(sessions); err != nil {
				log.Warnf("maintenance: registry reconcile failed: %v", err)
			}
		}),
	); err != nil {
		log.Errorf("maintenance: registering registry GC job failed: %v", err)
	}
}
