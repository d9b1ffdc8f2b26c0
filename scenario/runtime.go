// Package scenario runs tengo scripts that build bodies and welds in a world,
// save it, reload it and check what came back.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"go.uber.org/zap"

	"github.com/milk9111/shipweld/joint"
	"github.com/milk9111/shipweld/physics"
	"github.com/milk9111/shipweld/tag"
	"github.com/milk9111/shipweld/weld"
	"github.com/milk9111/shipweld/world"
)

var ErrExpectation = errors.New("scenario: expectation failed")

const (
	bodySize = 2
	bodyMass = 1
)

// Runtime drives one world from scripts. It remembers every body a script
// declared so a reload can stage them again.
type Runtime struct {
	worlds *world.Registry
	name   string
	dt     float64
	log    *zap.Logger

	defs map[weld.BodyID]physics.BodyDef
}

func NewRuntime(worlds *world.Registry, name string, dt float64, log *zap.Logger) *Runtime {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runtime{
		worlds: worlds,
		name:   name,
		dt:     dt,
		log:    log.With(zap.String("world", name)),
		defs:   make(map[weld.BodyID]physics.BodyDef),
	}
}

// World returns the context the runtime is driving.
func (rt *Runtime) World() (*world.Context, error) {
	return rt.worlds.Get(rt.name)
}

// Run compiles and runs src. The script sees the world through the global
// `engine` map.
func (rt *Runtime) Run(ctx context.Context, name string, src []byte) error {
	script := tengo.NewScript(src)
	_ = script.Add("engine", map[string]any{})
	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := script.Compile()
	if err != nil {
		return fmt.Errorf("compile %s: %w", name, err)
	}
	if err := compiled.Set("engine", rt.engine()); err != nil {
		return err
	}
	if err := compiled.RunContext(ctx); err != nil {
		return fmt.Errorf("run %s: %w", name, err)
	}
	rt.log.Info("scenario finished", zap.String("script", name))
	return nil
}

// Reload drops the world's context and builds a new one from its save
// file. Every declared body is staged again but not loaded.
func (rt *Runtime) Reload() (*world.Context, error) {
	rt.worlds.Invalidate(rt.name)
	w, err := rt.World()
	if err != nil {
		return nil, err
	}
	ids := make([]weld.BodyID, 0, len(rt.defs))
	for id := range rt.defs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := w.Space.Stage(rt.defs[id]); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (rt *Runtime) engine() *tengo.ImmutableMap {
	values := map[string]tengo.Object{}

	fn := func(name string, f tengo.CallableFunc) {
		values[name] = &tengo.UserFunction{Name: name, Value: f}
	}

	fn("body", func(args ...tengo.Object) (tengo.Object, error) {
		def, err := bodyDef(args)
		if err != nil {
			return nil, err
		}
		w, err := rt.World()
		if err != nil {
			return nil, err
		}
		if _, err := w.Space.AddBody(def); err != nil {
			rt.log.Debug("body rejected", zap.Error(err))
			return tengo.FalseValue, nil
		}
		rt.defs[def.ID] = def
		return tengo.TrueValue, nil
	})

	fn("defer_body", func(args ...tengo.Object) (tengo.Object, error) {
		def, err := bodyDef(args)
		if err != nil {
			return nil, err
		}
		w, err := rt.World()
		if err != nil {
			return nil, err
		}
		if err := w.Space.Stage(def); err != nil {
			rt.log.Debug("body rejected", zap.Error(err))
			return tengo.FalseValue, nil
		}
		rt.defs[def.ID] = def
		return tengo.TrueValue, nil
	})

	fn("load", func(args ...tengo.Object) (tengo.Object, error) {
		id, err := bodyArg(args, 0)
		if err != nil {
			return nil, err
		}
		w, err := rt.World()
		if err != nil {
			return nil, err
		}
		if _, err := w.Space.Load(id); err != nil {
			rt.log.Debug("load failed", zap.Stringer("body", id), zap.Error(err))
			return tengo.FalseValue, nil
		}
		return tengo.TrueValue, nil
	})

	fn("remove_body", func(args ...tengo.Object) (tengo.Object, error) {
		id, err := bodyArg(args, 0)
		if err != nil {
			return nil, err
		}
		w, err := rt.World()
		if err != nil {
			return nil, err
		}
		delete(rt.defs, id)
		return boolObject(w.Space.RemoveBody(id)), nil
	})

	fn("weld", func(args ...tengo.Object) (tengo.Object, error) {
		j, err := jointArgs(args)
		if err != nil {
			rt.log.Debug("weld rejected", zap.Error(err))
			return tengo.FalseValue, nil
		}
		w, err := rt.World()
		if err != nil {
			return nil, err
		}
		id, err := w.Welds.Create(j)
		if err != nil {
			return tengo.FalseValue, nil
		}
		return &tengo.Int{Value: int64(id)}, nil
	})

	fn("unweld", func(args ...tengo.Object) (tengo.Object, error) {
		id, err := weldArg(args, 0)
		if err != nil {
			return nil, err
		}
		w, err := rt.World()
		if err != nil {
			return nil, err
		}
		return boolObject(w.Welds.Remove(id) == nil), nil
	})

	fn("update", func(args ...tengo.Object) (tengo.Object, error) {
		id, err := weldArg(args, 0)
		if err != nil {
			return nil, err
		}
		j, err := jointArgs(args[1:])
		if err != nil {
			rt.log.Debug("update rejected", zap.Error(err))
			return tengo.FalseValue, nil
		}
		w, err := rt.World()
		if err != nil {
			return nil, err
		}
		return boolObject(w.Welds.Update(id, j) == nil), nil
	})

	fn("list", func(args ...tengo.Object) (tengo.Object, error) {
		body, err := bodyArg(args, 0)
		if err != nil {
			return nil, err
		}
		w, err := rt.World()
		if err != nil {
			return nil, err
		}
		ids := w.Welds.ListByBody(body)
		out := make([]tengo.Object, 0, len(ids))
		for _, id := range ids {
			out = append(out, &tengo.Int{Value: int64(id)})
		}
		return &tengo.Array{Value: out}, nil
	})

	fn("static", func(args ...tengo.Object) (tengo.Object, error) {
		id, err := bodyArg(args, 0)
		if err != nil {
			return nil, err
		}
		w, err := rt.World()
		if err != nil {
			return nil, err
		}
		b, ok := w.Space.Body(id)
		if !ok {
			return tengo.FalseValue, nil
		}
		return boolObject(b.IsStatic()), nil
	})

	fn("save", func(args ...tengo.Object) (tengo.Object, error) {
		w, err := rt.World()
		if err != nil {
			return nil, err
		}
		wrote, err := w.Save()
		if err != nil {
			return nil, err
		}
		return boolObject(wrote), nil
	})

	fn("reload", func(args ...tengo.Object) (tengo.Object, error) {
		if _, err := rt.Reload(); err != nil {
			return nil, err
		}
		return tengo.TrueValue, nil
	})

	fn("step", func(args ...tengo.Object) (tengo.Object, error) {
		n := int64(1)
		if len(args) > 0 {
			v, ok := tengo.ToInt64(args[0])
			if !ok || v < 0 {
				return nil, tengo.ErrInvalidArgumentType{Name: "n", Expected: "non-negative int", Found: args[0].TypeName()}
			}
			n = v
		}
		w, err := rt.World()
		if err != nil {
			return nil, err
		}
		for i := int64(0); i < n; i++ {
			w.Tick(rt.dt)
		}
		return tengo.UndefinedValue, nil
	})

	fn("pending", func(args ...tengo.Object) (tengo.Object, error) {
		w, err := rt.World()
		if err != nil {
			return nil, err
		}
		return &tengo.Int{Value: int64(len(w.Welds.Pending()))}, nil
	})

	fn("expect", func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 1 {
			return nil, tengo.ErrWrongNumArguments
		}
		if !args[0].IsFalsy() {
			return tengo.TrueValue, nil
		}
		msg := "condition is false"
		if len(args) > 1 {
			msg = objectAsString(args[1])
		}
		return nil, fmt.Errorf("%w: %s", ErrExpectation, msg)
	})

	fn("log", func(args ...tengo.Object) (tengo.Object, error) {
		parts := make([]string, 0, len(args))
		for _, a := range args {
			parts = append(parts, objectAsString(a))
		}
		rt.log.Info(strings.Join(parts, " "))
		return tengo.UndefinedValue, nil
	})

	return &tengo.ImmutableMap{Value: values}
}

// bodyDef reads (id, x, y, static).
func bodyDef(args []tengo.Object) (physics.BodyDef, error) {
	if len(args) < 1 {
		return physics.BodyDef{}, tengo.ErrWrongNumArguments
	}
	id, err := bodyArg(args, 0)
	if err != nil {
		return physics.BodyDef{}, err
	}
	def := physics.BodyDef{ID: id, Width: bodySize, Height: bodySize, Mass: bodyMass}
	if len(args) > 1 {
		def.X, _ = tengo.ToFloat64(args[1])
	}
	if len(args) > 2 {
		def.Y, _ = tengo.ToFloat64(args[2])
	}
	if len(args) > 3 {
		def.Static = !args[3].IsFalsy()
	}
	return def, nil
}

func bodyArg(args []tengo.Object, i int) (weld.BodyID, error) {
	if len(args) <= i {
		return 0, tengo.ErrWrongNumArguments
	}
	v, ok := tengo.ToInt64(args[i])
	if !ok {
		return 0, tengo.ErrInvalidArgumentType{Name: "body", Expected: "int", Found: args[i].TypeName()}
	}
	return weld.BodyID(v), nil
}

func weldArg(args []tengo.Object, i int) (weld.ID, error) {
	if len(args) <= i {
		return 0, tengo.ErrWrongNumArguments
	}
	v, ok := tengo.ToInt64(args[i])
	if !ok || v < 0 || v > int64(^uint32(0)) {
		return 0, tengo.ErrInvalidArgumentType{Name: "id", Expected: "weld id", Found: args[i].TypeName()}
	}
	return weld.ID(v), nil
}

// jointArgs reads (kind, a, b, params).
func jointArgs(args []tengo.Object) (joint.Joint, error) {
	if len(args) < 3 {
		return nil, tengo.ErrWrongNumArguments
	}
	kind := strings.TrimSpace(objectAsString(args[0]))
	a, err := bodyArg(args, 1)
	if err != nil {
		return nil, err
	}
	b, err := bodyArg(args, 2)
	if err != nil {
		return nil, err
	}
	params := tag.New()
	if len(args) > 3 {
		if m, ok := tag.AsCompound(objectToAny(args[3])); ok {
			params = m
		}
	}
	return joint.New(kind, a, b, params)
}

func boolObject(v bool) tengo.Object {
	if v {
		return tengo.TrueValue
	}
	return tengo.FalseValue
}

func objectAsString(obj tengo.Object) string {
	if obj == nil {
		return ""
	}
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	default:
		return strings.Trim(v.String(), "\"")
	}
}

func objectToAny(obj tengo.Object) any {
	if obj == nil {
		return nil
	}

	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	case *tengo.Int:
		return v.Value
	case *tengo.Float:
		return v.Value
	case *tengo.Bool:
		return !v.IsFalsy()
	case *tengo.Array:
		out := make([]any, 0, len(v.Value))
		for _, item := range v.Value {
			out = append(out, objectToAny(item))
		}
		return out
	case *tengo.ImmutableArray:
		out := make([]any, 0, len(v.Value))
		for _, item := range v.Value {
			out = append(out, objectToAny(item))
		}
		return out
	case *tengo.Map:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = objectToAny(item)
		}
		return out
	case *tengo.ImmutableMap:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = objectToAny(item)
		}
		return out
	case *tengo.Undefined:
		return nil
	default:
		return v.String()
	}
}
