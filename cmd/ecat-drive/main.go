// cmd/ecat-drive/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"github.com/tamzrod/ecat-drive/internal/config"
	"github.com/tamzrod/ecat-drive/internal/drive"
	"github.com/tamzrod/ecat-drive/internal/feed"
	"github.com/tamzrod/ecat-drive/internal/mirror"
	"github.com/tamzrod/ecat-drive/internal/status"
)

func main() {
	cfgPath := flag.String("config", "", "path to config yaml (default: built-in defaults)")
	simulated := flag.Bool("sim", false, "run against the simulated drive")
	listen := flag.String("listen", "", "http/websocket listen address (overrides feed.listen)")
	withShell := flag.Bool("shell", false, "start the operator shell")
	flag.Parse()

	// --------------------
	// Load + validate config
	// --------------------

	envCfg, err := config.ParseEnv()
	if err != nil {
		log.Fatalf("env parse failed: %v", err)
	}
	if *cfgPath == "" {
		*cfgPath = envCfg.ConfigPath
	}

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			log.Fatalf("config load failed: %v", err)
		}
		cfg = *loaded
	}

	envCfg.Apply(&cfg)
	if *listen != "" {
		cfg.Feed.Listen = *listen
	}

	if err := config.Validate(&cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(&cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Engine
	// --------------------

	open, kind := selectOpener(cfg, *simulated || envCfg.Sim)
	log.Printf("using %s master (slave=%d:%d)", kind, cfg.Slave.Alias, cfg.Slave.Position)

	pub := status.NewPublisher()
	ctrl, err := drive.Build(cfg, open, pub)
	if err != nil {
		log.Fatalf("controller build failed: %v", err)
	}

	// Observers outlive ctx so the shutdown state still reaches them.
	obsCtx, stopObservers := context.WithCancel(context.Background())
	defer stopObservers()

	var wg sync.WaitGroup
	goRun := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	goRun(func() { pub.Run(obsCtx) })

	// ---- status mirror (optional) ----
	if cfg.StatusMemory != nil {
		m, closeMirror, err := mirror.Build(cfg.StatusMemory, pub)
		if err != nil {
			log.Fatalf("status mirror build failed (endpoint=%s): %v", cfg.StatusMemory.Endpoint, err)
		}
		defer closeMirror()
		goRun(func() { m.Run(obsCtx) })
	}

	// ---- feed (optional) ----
	if cfg.Feed.Listen != "" {
		h := feed.Handler(ctrl, pub)
		goRun(func() {
			if err := feed.Serve(obsCtx, cfg.Feed.Listen, h); err != nil {
				log.Printf("feed stopped: %v", err)
			}
		})
	}

	// Bus comes up once every observer is attached.
	if err := ctrl.Initialize(); err != nil {
		log.Printf("initialize failed: %v", err)
	}

	if *withShell {
		sh := newShell(ctrl)
		go func() {
			sh.Run()
			stop()
		}()
		<-ctx.Done()
		sh.Close()
	} else {
		<-ctx.Done()
	}

	// --------------------
	// Shutdown
	// --------------------

	s := ctrl.Stats()
	log.Printf("shutting down (cycles=%d max_latency=%dns)", s.Cycles, s.MaxLatencyNs)
	ctrl.Shutdown()
	pub.Drain()
	stopObservers()
	wg.Wait()
}
