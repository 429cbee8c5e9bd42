package maintenance

import (
	"os"

	"github.com/adatrace/ada-trace/internal/cache"
	"github.com/adatrace/ada-trace/internal/state"
	"github.com/adatrace/ada-trace/pkg/log"
)

func (m *Scheduler) registerCacheEvictionSweep(store *state.Store, traceCache *cache.Cache) {
	if store == nil || traceCache == nil {
		return
	}
	log.Info("maintenance: registering cache-eviction sweep")
	if _, err := scheduleHourly(m, func() {
		sessions, err := store.List()
		if err != nil {
			log.Warnf("maintenance: cache sweep could not list sessions: %v", err)
			return
		}
		live := make(map[string]bool, len(sessions))
		for _, sess := range sessions {
			live[sess.SessionPath] = true
		}

		keys := traceCache.Keys()
		for _, key := range keys {
			if live[key] {
				continue
			}
			if _, err := os.Stat(key); err == nil {
				continue
			}
			traceCache.Invalidate(key)
		}
	}); err != nil {
		log.Errorf("maintenance: registering cache-eviction sweep failed: %v", err)
	}
}
