// Package world keeps one simulation context per named world: its physics
// space, its constraint manager and the save data they persist into.
package world

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/milk9111/shipweld/joint"
	"github.com/milk9111/shipweld/physics"
	"github.com/milk9111/shipweld/savedata"
	"github.com/milk9111/shipweld/weld"
)

var ErrInvalidName = errors.New("world: invalid name")

// Context is everything that lives and dies with one loaded world.
type Context struct {
	Name    string
	Session uuid.UUID
	Space   *physics.Space
	Welds   *weld.Manager
	Data    *savedata.Container
}

// Tick advances the world by dt and delivers the body events it produced.
func (c *Context) Tick(dt float64) {
	if c == nil || c.Space == nil {
		return
	}
	c.Space.Step(dt)
}

// Save writes the world's document if anything changed.
func (c *Context) Save() (bool, error) {
	if c == nil || c.Data == nil {
		return false, nil
	}
	return c.Data.Save()
}

func (c *Context) close() {
	if c.Welds != nil {
		c.Data.Unregister(c.Welds.Key())
		c.Welds.Close()
	}
}

// Registry creates world contexts on first use.
type Registry struct {
	dir      string
	settings physics.Settings
	log      *zap.Logger
	worlds   map[string]*Context
}

func NewRegistry(dir string, settings physics.Settings, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		dir:      dir,
		settings: settings,
		log:      log,
		worlds:   make(map[string]*Context),
	}
}

// Path returns the save file of the named world.
func (r *Registry) Path(name string) string {
	return filepath.Join(r.dir, name+".yaml")
}

// Get returns the context of the named world, loading it from its save file
// the first time it is asked for.
func (r *Registry) Get(name string) (*Context, error) {
	if ctx, ok := r.worlds[name]; ok {
		return ctx, nil
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	session := uuid.New()
	log := r.log.With(zap.String("world", name), zap.String("session", session.String()))

	data := savedata.NewContainer(r.Path(name), log)
	if err := data.Read(); err != nil {
		return nil, err
	}

	space := physics.NewSpace(r.settings, log)
	welds := weld.NewManager(weld.Options{
		Solver:   space,
		Bodies:   space,
		Events:   space,
		Variants: joint.Codec{},
		Dirty:    data,
		Logger:   log,
	})
	if err := data.Register(welds); err != nil {
		welds.Close()
		return nil, err
	}

	ctx := &Context{
		Name:    name,
		Session: session,
		Space:   space,
		Welds:   welds,
		Data:    data,
	}
	r.worlds[name] = ctx
	log.Info("world opened", zap.Int("pending", len(welds.Pending())))
	return ctx, nil
}

// Loaded reports whether the named world has a live context.
func (r *Registry) Loaded(name string) bool {
	_, ok := r.worlds[name]
	return ok
}

// Save writes every loaded world.
func (r *Registry) Save() error {
	var errs []error
	for _, name := range r.Names() {
		if _, err := r.worlds[name].Save(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Invalidate drops the named world's context without saving it. The next
// Get builds a fresh one from disk.
func (r *Registry) Invalidate(name string) {
	ctx, ok := r.worlds[name]
	if !ok {
		return
	}
	ctx.close()
	delete(r.worlds, name)
	r.log.Info("world closed", zap.String("world", name))
}

// Names returns the loaded worlds in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.worlds))
	for name := range r.worlds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close saves and drops every world.
func (r *Registry) Close() error {
	err := r.Save()
	for _, name := range r.Names() {
		r.Invalidate(name)
	}
	return err
}
