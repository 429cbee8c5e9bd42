// Package signalbus provides an optional NATS-backed alternative to
// sending OS signals directly to companion recorders: a recorder running
// under a separate supervisor (for example in a containerized companion
// on another host) can subscribe to a per-session stop subject. The
// binaries connect the bus when a NATS address is configured, but
// internal/capture does not call PublishStop; its recorders are stopped
// with OS signals only.
package signalbus

import (
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/adatrace/ada-trace/pkg/log"
)

// Config holds the settings needed to connect to a NATS server.
type Config struct {
	Address       string `json:"address"`
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	CredsFilePath string `json:"creds_file_path,omitempty"`
}

var (
	clientOnce     sync.Once
	clientInstance *Bus
)

// Bus wraps a NATS connection used purely for the small set of
// publish/subscribe subjects the capture controller needs.
type Bus struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs []*nats.Subscription
}

// Connect establishes (once) the singleton signal bus from cfg. If
// cfg.Address is empty, the bus stays unconnected and every publish is a
// no-op — callers fall back to direct OS signals in that case.
func Connect(cfg Config) {
	clientOnce.Do(func() {
		if cfg.Address == "" {
			log.Warn("signalbus: no address configured, stop signaling falls back to OS signals only")
			return
		}

		bus, err := newBus(cfg)
		if err != nil {
			log.Warnf("signalbus: connect failed: %v", err)
			return
		}
		clientInstance = bus
	})
}

// GetBus returns the singleton signal bus, or nil if Connect was never
// called or failed to reach a server.
func GetBus() *Bus {
	return clientInstance
}

func newBus(cfg Config) (*Bus, error) {
	var opts []nats.Option
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.CredsFilePath != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFilePath))
	}
	opts = append(opts, nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
		if err != nil {
			log.Warnf("signalbus: disconnected: %v", err)
		}
	}))
	opts = append(opts, nats.ReconnectHandler(func(nc *nats.Conn) {
		log.Infof("signalbus: reconnected to %s", nc.ConnectedUrl())
	}))

	nc, err := nats.Connect(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("signalbus: connect to %s: %w", cfg.Address, err)
	}
	log.Infof("signalbus: connected to %s", cfg.Address)
	return &Bus{conn: nc}, nil
}

// StopSubject is the subject a capture controller publishes to when
// asking out-of-process recorders for sessionID to stop.
func StopSubject(sessionID string) string {
	return "capture." + sessionID + ".stop"
}

// PublishStop notifies any recorder subscribed to sessionID's stop
// subject. A nil bus (no NATS configured) is a silent no-op, not an
// error. Nothing in this repository calls it.
func (b *Bus) PublishStop(sessionID string) error {
	if b == nil || b.conn == nil {
		return nil
	}
	if err := b.conn.Publish(StopSubject(sessionID), []byte("stop")); err != nil {
		return fmt.Errorf("signalbus: publish stop for %s: %w", sessionID, err)
	}
	return nil
}

// SubscribeStop registers handler to be invoked whenever a stop message
// for sessionID is published. Used by a recorder running under its own
// supervisor rather than as a direct child of the capture controller.
func (b *Bus) SubscribeStop(sessionID string, handler func()) error {
	if b == nil || b.conn == nil {
		return fmt.Errorf("signalbus: not connected")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, err := b.conn.Subscribe(StopSubject(sessionID), func(*nats.Msg) {
		handler()
	})
	if err != nil {
		return fmt.Errorf("signalbus: subscribe for %s: %w", sessionID, err)
	}
	b.subs = append(b.subs, sub)
	return nil
}

// Close unsubscribes everything and closes the underlying connection.
func (b *Bus) Close() {
	if b == nil || b.conn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = nil
	b.conn.Close()
}
