// Command ada-query-engine serves the trace.info RPC surface and
// Prometheus metrics, sharing the capture daemon's sidecar directory and
// session registry.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/google/gops/agent"

	"github.com/adatrace/ada-trace/internal/cache"
	"github.com/adatrace/ada-trace/internal/config"
	"github.com/adatrace/ada-trace/internal/maintenance"
	"github.com/adatrace/ada-trace/internal/queryengine"
	"github.com/adatrace/ada-trace/internal/registry"
	"github.com/adatrace/ada-trace/internal/signalbus"
	"github.com/adatrace/ada-trace/internal/state"
	"github.com/adatrace/ada-trace/pkg/log"
	"github.com/adatrace/ada-trace/pkg/runtimeenv"
)

func main() {
	var (
		flagConfigFile string
		flagEnvFile    string
		flagGops       bool
	)
	fs := flag.NewFlagSet("ada-query-engine", flag.ExitOnError)
	fs.StringVar(&flagConfigFile, "config", "./config.json", "path to config.json")
	fs.StringVar(&flagEnvFile, "env", "./.env", "path to an optional .env file")
	fs.BoolVar(&flagGops, "gops", false, "listen via github.com/google/gops/agent (for debugging)")

	preParse := flag.NewFlagSet("ada-query-engine-preparse", flag.ContinueOnError)
	preParse.StringVar(&flagConfigFile, "config", "./config.json", "path to config.json")
	preParse.StringVar(&flagEnvFile, "env", "./.env", "path to an optional .env file")
	preParse.BoolVar(&flagGops, "gops", false, "listen via github.com/google/gops/agent (for debugging)")
	_ = preParse.Parse(os.Args[1:])

	cfg := config.Load(flagConfigFile, flagEnvFile)
	config.RegisterFlags(fs, &cfg)
	fs.Parse(os.Args[1:])

	log.SetLogLevel(cfg.LogLevel)
	log.SetLogDateTime(cfg.LogDate)

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops agent failed to start: %v", err)
		}
	}

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

	traceCache := cache.New(cfg.CacheCapacity)

	sweeper := maintenance.DirSweeper{SessionsRoot: stateDir}
	scheduler, err := maintenance.Start(store, reg, traceCache, sweeper)
	if err != nil {
		log.Fatalf("starting maintenance scheduler: %v", err)
	}
	defer scheduler.Shutdown()

	srv := queryengine.New(cfg.ListenAddr, traceCache, cfg.RateLimitPerSec, cfg.RateLimitBurst, 4, cfg.JWTSecret)
	srv.Init()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Start(); err != nil {
			log.Fatalf("query-engine server failed: %v", err)
		}
	}()

	if err := runtimeenv.DropPrivileges(cfg.User, cfg.Group); err != nil {
		log.Fatalf("dropping privileges: %v", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	runtimeenv.SystemdNotify(true, "running")

	<-sigs
	runtimeenv.SystemdNotify(false, "shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		log.Errorf("server shutdown: %v", err)
	}
	wg.Wait()
	log.Info("query-engine shutdown complete")
}
