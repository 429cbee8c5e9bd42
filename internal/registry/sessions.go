package registry

import (
	"database/sql"
	"fmt"

	"github.com/adatrace/ada-trace/internal/state"
)

// row is the sqlite-column shape of a session record, mapped with sqlx
// struct tags onto the session table created by the embedded
// migrations. It mirrors state.Session field-for-field so the registry
// can be rebuilt from, or reconciled against, the sidecar JSON files at
// any time.
type row struct {
	ID          string         `db:"id"`
	SessionPath string         `db:"session_path"`
	AppInfo     string         `db:"app_info"`
	Status      string         `db:"status"`
	StartTime   int64          `db:"start_time"`
	EndTime     sql.NullInt64  `db:"end_time"`
	PID         sql.NullInt64  `db:"pid"`
	CapturePID  sql.NullInt64  `db:"capture_pid"`
}

func fromSession(sess state.Session) row {
	r := row{
		ID:          sess.SessionID,
		SessionPath: sess.SessionPath,
		AppInfo:     sess.AppInfo,
		Status:      string(sess.Status),
		StartTime:   sess.StartTime,
	}
	if sess.EndTime != nil {
		r.EndTime = sql.NullInt64{Int64: *sess.EndTime, Valid: true}
	}
	if sess.PID != nil {
		r.PID = sql.NullInt64{Int64: int64(*sess.PID), Valid: true}
	}
	if sess.CapturePID != nil {
		r.CapturePID = sql.NullInt64{Int64: int64(*sess.CapturePID), Valid: true}
	}
	return r
}

func (r row) toSession() state.Session {
	sess := state.Session{
		SessionID:   r.ID,
		SessionPath: r.SessionPath,
		AppInfo:     r.AppInfo,
		Status:      state.Status(r.Status),
		StartTime:   r.StartTime,
	}
	if r.EndTime.Valid {
		v := r.EndTime.Int64
		sess.EndTime = &v
	}
	if r.PID.Valid {
		v := int(r.PID.Int64)
		sess.PID = &v
	}
	if r.CapturePID.Valid {
		v := int(r.CapturePID.Int64)
		sess.CapturePID = &v
	}
	return sess
}

// Upsert inserts sess, or replaces the existing row with the same ID —
// the registry is a mirror, so the latest write always wins.
func (r *Registry) Upsert(sess state.Session) error {
	rec := fromSession(sess)
	_, err := r.db.NamedExec(`
		INSERT INTO session (id, session_path, app_info, status, start_time, end_time, pid, capture_pid)
		VALUES (:id, :session_path, :app_info, :status, :start_time, :end_time, :pid, :capture_pid)
		ON CONFLICT(id) DO UPDATE SET
			session_path = excluded.session_path,
			app_info     = excluded.app_info,
			status       = excluded.status,
			start_time   = excluded.start_time,
			end_time     = excluded.end_time,
			pid          = excluded.pid,
			capture_pid  = excluded.capture_pid
	`, rec)
	if err != nil {
		return fmt.Errorf("registry: upsert %s: %w", sess.SessionID, err)
	}
	return nil
}

// Get returns the session record for id.
func (r *Registry) Get(id string) (state.Session, error) {
	var rec row
	if err := r.db.Get(&rec, `SELECT * FROM session WHERE id = ?`, id); err != nil {
		return state.Session{}, fmt.Errorf("registry: get %s: %w", id, err)
	}
	return rec.toSession(), nil
}

// List returns every session record, most recently started first.
func (r *Registry) List() ([]state.Session, error) {
	var recs []row
	if err := r.db.Select(&recs, `SELECT * FROM session ORDER BY start_time DESC`); err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}
	out := make([]state.Session, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toSession())
	}
	return out, nil
}

// ListByStatus returns every session record with the given status,
// most recently started first.
func (r *Registry) ListByStatus(status state.Status) ([]state.Session, error) {
	var recs []row
	if err := r.db.Select(&recs, `SELECT * FROM session WHERE status = ? ORDER BY start_time DESC`, string(status)); err != nil {
		return nil, fmt.Errorf("registry: list by status %s: %w", status, err)
	}
	out := make([]state.Session, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toSession())
	}
	return out, nil
}

// Delete removes the session record for id, if present.
func (r *Registry) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM session WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("registry: delete %s: %w", id, err)
	}
	return nil
}

// Reconcile replaces the entire registry contents with sessions, the
// set of sidecar records currently on disk. Called when ada-capture exits
// and by the query-engine's five-minute maintenance job, to repair a
// registry that has drifted from — or never seen — the sidecar directory.
func (r *Registry) Reconcile(sessions []state.Session) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("registry: reconcile begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM session`); err != nil {
		return fmt.Errorf("registry: reconcile clear: %w", err)
	}
	for _, sess := range sessions {
		rec := fromSession(sess)
		if _, err := tx.NamedExec(`
			INSERT INTO session (id, session_path, app_info, status, start_time, end_time, pid, capture_pid)
			VALUES (:id, :session_path, :app_info, :status, :start_time, :end_time, :pid, :capture_pid)
		`, rec); err != nil {
			return fmt.Errorf("registry: reconcile insert %s: %w", sess.SessionID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("registry: reconcile commit: %w", err)
	}
	return nil
}
