package registry

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/adatrace/ada-trace/pkg/log"
)

var (
	connectOnce sync.Once
	instance    *Registry
)

// Registry is the session-index database: one sqlite file per user,
// kept alongside the sidecar JSON directory as a queryable mirror of
// it rather than the source of truth. The sidecar files remain
// authoritative — the registry can always be rebuilt from them.
type Registry struct {
	db *sqlx.DB
}

// Connect opens (creating if necessary) the sqlite registry database at
// path, running any pending migrations. Only sqlite3 is supported: the
// registry backs a single local daemon process, not a shared service,
// so there is no multi-writer scenario a networked database would help
// with.
func Connect(path string) (*Registry, error) {
	var err error
	connectOnce.Do(func() {
		sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &queryHooks{}))
		var dbHandle *sqlx.DB
		dbHandle, err = sqlx.Open("sqlite3WithHooks", fmt.Sprintf("%s?_foreign_keys=on", path))
		if err != nil {
			return
		}
		// sqlite does not multithread writers; more than one open
		// connection just means waiting on the same lock.
		c := GetConfig()
		dbHandle.SetMaxOpenConns(c.MaxOpenConnections)
		dbHandle.SetMaxIdleConns(c.MaxIdleConnections)
		dbHandle.SetConnMaxLifetime(c.ConnectionMaxLifetime)
		dbHandle.SetConnMaxIdleTime(c.ConnectionMaxIdleTime)

		if mErr := migrate(path, dbHandle.DB); mErr != nil {
			err = mErr
			return
		}
		instance = &Registry{db: dbHandle}
	})
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, fmt.Errorf("registry: connect failed on a prior call")
	}
	return instance, nil
}

// GetConnection returns the process-wide registry handle established by
// Connect. Callers must Connect before using it: a fail-fast singleton
// rather than lazily opening a connection per call.
func GetConnection() *Registry {
	if instance == nil {
		log.Fatalf("registry: database connection not initialized")
	}
	return instance
}

// Close releases the underlying database handle.
func (r *Registry) Close() error {
	return r.db.Close()
}
