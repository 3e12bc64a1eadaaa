package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/milk9111/contactsim/config"
	"github.com/milk9111/contactsim/prefabs"
	"github.com/milk9111/contactsim/sim"
	"github.com/milk9111/contactsim/telemetry"
	"golang.org/x/sync/errgroup"
)

// version is set at link time.
var version = "dev"

const slowMotion = 0.05

type options struct {
	scene    string
	runtime  config.Runtime
	quiet    bool
	advances bool
}

func main() {
	sceneName := flag.String("scene", prefabs.DefaultScene, "scene file in prefabs/")
	slow := flag.Bool("slow", false, "run the simulation in slow motion")
	steps := flag.Int("steps", 0, "stop after this many steps (0 runs until interrupted)")
	watch := flag.Bool("watch", false, "restart the simulation when prefabs change")
	quiet := flag.Bool("quiet", false, "only print the event summary")
	advances := flag.Bool("advances", false, "also print pose advance events")
	flag.Parse()

	rt, err := config.LoadRuntime()
	if err != nil {
		config.Exitf("config: %v", err)
	}
	if *slow {
		rt.TimeScale = slowMotion
	}
	if *steps > 0 {
		rt.Steps = *steps
	}

	flush, err := telemetry.InitSentry(rt.SentryDSN, rt.SentryEnvironment, version)
	if err != nil {
		log.Printf("telemetry: %v", err)
	}
	defer flush()
	defer telemetry.Recover("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, "contactsim", rt.OTelEndpoint, rt.OTelEnabled)
	if err != nil {
		log.Printf("telemetry: tracing disabled: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Printf("telemetry: shutdown: %v", err)
		}
	}()

	opts := options{scene: *sceneName, runtime: rt, quiet: *quiet, advances: *advances}
	if *watch {
		err = watchLoop(ctx, opts)
	} else {
		err = runOnce(ctx, opts)
	}
	if err != nil {
		telemetry.CaptureFatal("run", err)
		stop()
		config.Exitf("contactsim: %v", err)
	}
}

func runOnce(ctx context.Context, opts options) error {
	spec, err := prefabs.LoadSceneSpec(opts.scene)
	if err != nil {
		return fmt.Errorf("load scene: %w", err)
	}
	s, err := sim.New(sim.Options{
		Scene:    spec,
		Runtime:  opts.runtime,
		Out:      os.Stdout,
		Quiet:    opts.quiet,
		Advances: opts.advances,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Printf("contactsim: close: %v", err)
		}
	}()

	clock := s.Driver.Clock()
	log.Printf("contactsim: running %q at %v per step, time scale %.2f", spec.Name, clock.FixedStep, clock.TimeScale)
	return s.Run(ctx)
}

// watchLoop runs the simulation and restarts it with a fresh world whenever a
// scene or script changes. A scene that fails to build after a change is
// logged and the loop waits for the next edit.
func watchLoop(ctx context.Context, opts options) error {
	w, err := prefabs.NewWatcher("prefabs", "prefabs/scripts")
	if err != nil {
		return fmt.Errorf("watch prefabs: %w", err)
	}
	defer w.Close()

	first := true
	for {
		runCtx, cancel := context.WithCancel(ctx)
		var restart atomic.Bool
		g, gctx := errgroup.WithContext(runCtx)
		g.Go(func() error {
			defer cancel()
			return runOnce(gctx, opts)
		})
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case name, ok := <-w.Events:
					if !ok {
						return nil
					}
					log.Printf("contactsim: %s changed, restarting", name)
					restart.Store(true)
					cancel()
					return nil
				case err, ok := <-w.Errors:
					if !ok {
						return nil
					}
					log.Printf("contactsim: watch: %v", err)
				}
			}
		})
		err := g.Wait()
		cancel()

		if err != nil {
			if first {
				return err
			}
			log.Printf("contactsim: %v (waiting for the next change)", err)
			if !waitForChange(ctx, w) {
				return nil
			}
			continue
		}
		first = false
		if !restart.Load() || ctx.Err() != nil {
			return nil
		}
	}
}

func waitForChange(ctx context.Context, w *prefabs.Watcher) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case name, ok := <-w.Events:
			if !ok {
				return false
			}
			log.Printf("contactsim: %s changed, retrying", name)
			return true
		case err, ok := <-w.Errors:
			if !ok {
				return false
			}
			log.Printf("contactsim: watch: %v", err)
		}
	}
}
