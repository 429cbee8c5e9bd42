// Command ada-capture is the capture daemon: it reads one JSON command per
// line on stdin and writes one JSON response per line on stdout. Each
// invocation owns at most one active capture session.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/adatrace/ada-trace/internal/capture"
	"github.com/adatrace/ada-trace/internal/config"
	"github.com/adatrace/ada-trace/internal/daemon"
	"github.com/adatrace/ada-trace/internal/registry"
	"github.com/adatrace/ada-trace/internal/signalbus"
	"github.com/adatrace/ada-trace/internal/state"
	"github.com/adatrace/ada-trace/pkg/log"
)

func main() {
	var (
		flagConfigFile string
		flagEnvFile    string
		flagAgentLib   string
	)
	fs := flag.NewFlagSet("ada-capture", flag.ExitOnError)
	fs.StringVar(&flagConfigFile, "config", "./config.json", "path to config.json")
	fs.StringVar(&flagEnvFile, "env", "./.env", "path to an optional .env file")
	fs.StringVar(&flagAgentLib, "agent-lib", "", "path to the agent dylib/so (overrides ADA_AGENT_RPATH_SEARCH_PATHS)")

	preParse := flag.NewFlagSet("ada-capture-preparse", flag.ContinueOnError)
	preParse.StringVar(&flagConfigFile, "config", "./config.json", "path to config.json")
	preParse.StringVar(&flagEnvFile, "env", "./.env", "path to an optional .env file")
	preParse.StringVar(&flagAgentLib, "agent-lib", "", "path to the agent dylib/so")
	_ = preParse.Parse(os.Args[1:])

	cfg := config.Load(flagConfigFile, flagEnvFile)
	config.RegisterFlags(fs, &cfg)
	fs.Parse(os.Args[1:])

	log.SetLogLevel(cfg.LogLevel)
	log.SetLogDateTime(cfg.LogDate)

	stateDir := cfg.StateDir
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("resolving home directory: %v", err)
		}
		stateDir = filepath.Join(home, ".ada")
	}

	store, err := state.NewStore(filepath.Join(stateDir, "sessions"))
	if err != nil {
		log.Fatalf("opening sidecar store: %v", err)
	}

	reg, err := registry.Connect(filepath.Join(stateDir, "registry.db"))
	if err != nil {
		log.Fatalf("opening session registry: %v", err)
	}
	defer reg.Close()

	if cfg.NatsURL != "" {
		signalbus.Connect(signalbus.Config{Address: cfg.NatsURL})
		defer signalbus.GetBus().Close()
	}

	newController := func() capture.TracerController {
		return capture.NewAgentController(flagAgentLib)
	}

	srv := daemon.NewServer(newController, store)

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("ada-capture: received shutdown signal")
		cancel()
	}()

	if err := srv.Run(ctx, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("daemon run failed: %v", err)
	}

	if err := reg.Reconcile(mustList(store)); err != nil {
		log.Warnf("ada-capture: final registry reconcile failed: %v", err)
	}
}

func mustList(store *state.Store) []state.Session {
	sessions, err := store.List()
	if err != nil {
		log.Warnf("ada-capture: listing sidecar sessions at exit: %v", err)
		return nil
	}
	return sessions
}
