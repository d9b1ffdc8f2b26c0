package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/milk9111/shipweld/config"
	"github.com/milk9111/shipweld/logging"
	"github.com/milk9111/shipweld/physics"
	"github.com/milk9111/shipweld/savedata"
	"github.com/milk9111/shipweld/scenario"
	"github.com/milk9111/shipweld/world"
)

type options struct {
	scenario string
	config   string
	saveDir  string
	world    string
	watch    bool
}

func main() {
	scenarioName := flag.String("scenario", "deferred", "scenario script name, see -list")
	configPath := flag.String("config", "", "config file (.yaml, .yml or .toml)")
	saveDir := flag.String("save", "", "directory the world is saved to; the world file is replaced on every run")
	worldName := flag.String("world", "", "world name (defaults to the config value)")
	watch := flag.Bool("watch", false, "keep running; rerun on script edits and reload on save file edits")
	list := flag.Bool("list", false, "list embedded scenarios and exit")
	flag.Parse()

	if *list {
		for _, name := range scenario.Names() {
			fmt.Println(name)
		}
		return
	}

	opts := options{
		scenario: *scenarioName,
		config:   *configPath,
		saveDir:  *saveDir,
		world:    *worldName,
		watch:    *watch,
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(opts options) (*config.Config, error) {
	cfg := config.Default()
	if opts.config != "" {
		var err error
		if cfg, err = config.Load(opts.config); err != nil {
			return nil, err
		}
	}
	if opts.saveDir != "" {
		cfg.World.SaveDir = opts.saveDir
	}
	if opts.world != "" {
		cfg.World.Name = opts.world
	}
	if opts.watch {
		cfg.Scenario.Watch = true
	}
	return cfg, cfg.Validate()
}

func run(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := physics.Settings{Iterations: cfg.Physics.Iterations, Gravity: cfg.Physics.Gravity}
	s := &sim{
		cfg:    cfg,
		name:   opts.scenario,
		worlds: world.NewRegistry(cfg.World.SaveDir, settings, log),
		log:    log,
	}

	err = s.runScenario(ctx)
	if !cfg.Scenario.Watch {
		return errors.Join(err, s.worlds.Close())
	}
	if err != nil {
		log.Error("scenario failed", zap.String("scenario", s.name), zap.Error(err))
	}
	return errors.Join(s.watch(ctx), s.worlds.Close())
}

type sim struct {
	cfg    *config.Config
	name   string
	worlds *world.Registry
	rt     *scenario.Runtime
	log    *zap.Logger
}

// runScenario runs the script against an empty world.
func (s *sim) runScenario(ctx context.Context) error {
	name := s.cfg.World.Name
	s.worlds.Invalidate(name)
	if err := os.Remove(s.worlds.Path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear world %s: %w", name, err)
	}
	s.rt = scenario.NewRuntime(s.worlds, name, s.cfg.Physics.TickRate.Seconds(), s.log)

	src, err := scenario.LoadScript(s.cfg.Scenario.Dir, s.name)
	if err != nil {
		return fmt.Errorf("load scenario %s: %w", s.name, err)
	}

	start := time.Now()
	if err := s.rt.Run(ctx, s.name, src); err != nil {
		return err
	}
	s.log.Info("scenario passed", zap.String("scenario", s.name), zap.Duration("took", time.Since(start)))
	return nil
}

func (s *sim) watch(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.World.SaveDir, 0o755); err != nil {
		return fmt.Errorf("create save dir: %w", err)
	}
	saves, err := savedata.NewWatcher(savedata.MatchFile(s.worlds.Path(s.cfg.World.Name)), s.cfg.World.SaveDir)
	if err != nil {
		return fmt.Errorf("watch saves: %w", err)
	}
	// Only scripts on disk can change; embedded ones have nothing to watch.
	var scripts *savedata.Watcher
	if _, err := os.Stat(s.cfg.Scenario.Dir); err == nil {
		scripts, err = savedata.NewWatcher(savedata.MatchFile(scenario.ScriptPath(s.cfg.Scenario.Dir, s.name)), s.cfg.Scenario.Dir)
		if err != nil {
			_ = saves.Close()
			return fmt.Errorf("watch scripts: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		errs := []error{saves.Close()}
		if scripts != nil {
			errs = append(errs, scripts.Close())
		}
		return errors.Join(errs...)
	})
	g.Go(func() error {
		return s.loop(ctx, saves, scripts)
	})
	s.log.Info("watching", zap.String("world", s.cfg.World.Name), zap.String("scenario", s.name))
	return g.Wait()
}

// loop ticks the world, autosaves it and reacts to file changes until ctx
// is done.
func (s *sim) loop(ctx context.Context, saves, scripts *savedata.Watcher) error {
	ticker := time.NewTicker(s.cfg.Physics.TickRate)
	defer ticker.Stop()

	var scriptEvents <-chan string
	var scriptErrors <-chan error
	if scripts != nil {
		scriptEvents, scriptErrors = scripts.Events, scripts.Errors
	}
	dt := s.cfg.Physics.TickRate.Seconds()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w, err := s.rt.World()
			if err != nil {
				return err
			}
			w.Tick(dt)
			if w.Data.Dirty() {
				if _, err := w.Save(); err != nil {
					s.log.Warn("autosave failed", zap.Error(err))
				}
			}
		case path, ok := <-saves.Events:
			if !ok {
				return nil
			}
			s.saveEdited(path)
		case path, ok := <-scriptEvents:
			if !ok {
				return nil
			}
			s.log.Info("scenario changed, rerunning", zap.String("path", path))
			if err := s.runScenario(ctx); err != nil {
				s.log.Error("scenario failed", zap.String("scenario", s.name), zap.Error(err))
			}
		case err, ok := <-saves.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("save watcher", zap.Error(err))
		case err, ok := <-scriptErrors:
			if !ok {
				return nil
			}
			s.log.Warn("script watcher", zap.Error(err))
		}
	}
}

// saveEdited reloads the world from a save file someone else wrote, then
// loads every body so the saved welds come back.
func (s *sim) saveEdited(path string) {
	w, err := s.rt.World()
	if err != nil {
		s.log.Warn("save changed", zap.Error(err))
		return
	}
	changed, err := w.Data.Changed()
	if err != nil {
		s.log.Warn("save changed", zap.String("path", path), zap.Error(err))
		return
	}
	if !changed {
		return
	}
	s.log.Info("save edited, reloading", zap.String("path", path))
	w, err = s.rt.Reload()
	if err != nil {
		s.log.Error("reload failed", zap.Error(err))
		return
	}
	for _, id := range w.Space.Staged() {
		if _, err := w.Space.Load(id); err != nil {
			s.log.Warn("load body", zap.Stringer("body", id), zap.Error(err))
		}
	}
	w.Space.Flush()
	s.log.Info("world reloaded",
		zap.Int("welds", w.Welds.Len()),
		zap.Int("pending", len(w.Welds.Pending())))
}
