package hooks

import (
	"errors"
	"maps"
	"reflect"
	"slices"
)

// Plugin attaches callbacks to a Dispatcher.
//
// Apply is invoked exactly once, when the plugin is registered.
type Plugin interface {
	Name() string
	Apply(d *Dispatcher) error
}

// Starter is implemented by plugins that need setup before Apply.
type Starter interface {
	Start() error
}

// Stopper is implemented by plugins that release resources on removal.
type Stopper interface {
	Stop() error
}

// Options is a plugin configuration bag.
type Options map[string]any

// Base carries a plugin's name and immutable options. Embed it in plugin
// types to get Name and the option accessors.
type Base struct {
	name    string
	options Options
}

// NewBase copies options so later mutation by the caller has no effect.
func NewBase(name string, options Options) Base {
	return Base{name: name, options: maps.Clone(options)}
}

// Name returns the plugin name.
func (b Base) Name() string {
	return b.name
}

// Option returns the option under key, or def when unset or nil.
func (b Base) Option(key string, def any) any {
	if v, ok := b.options[key]; ok && v != nil {
		return v
	}
	return def
}

// StringOption returns a string option.
func (b Base) StringOption(key, def string) string {
	if s, ok := b.Option(key, nil).(string); ok {
		return s
	}
	return def
}

// BoolOption returns a bool option.
func (b Base) BoolOption(key string, def bool) bool {
	if v, ok := b.Option(key, nil).(bool); ok {
		return v
	}
	return def
}

// IntOption returns an integer option. Config decoders hand numbers over as
// int, int64, uint64 or float64; all are accepted.
func (b Base) IntOption(key string, def int) int {
	switch v := b.Option(key, nil).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// StringsOption returns a list-of-strings option.
func (b Base) StringsOption(key string) []string {
	switch v := b.Option(key, nil).(type) {
	case []string:
		return slices.Clone(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Func is a plugin assembled from functions. ApplyFunc is required;
// registering a Func without it fails with MISSING_APPLY.
type Func struct {
	Base
	ApplyFunc func(d *Dispatcher) error
	StartFunc func() error
	StopFunc  func() error
}

// NewFunc creates a Func plugin.
func NewFunc(name string, apply func(d *Dispatcher) error) *Func {
	return &Func{Base: NewBase(name, nil), ApplyFunc: apply}
}

// Apply calls ApplyFunc.
func (f *Func) Apply(d *Dispatcher) error {
	if f.ApplyFunc == nil {
		return missingApplyError(f.Name())
	}
	return f.ApplyFunc(d)
}

// Start calls StartFunc when set.
func (f *Func) Start() error {
	if f.StartFunc == nil {
		return nil
	}
	return f.StartFunc()
}

// Stop calls StopFunc when set.
func (f *Func) Stop() error {
	if f.StopFunc == nil {
		return nil
	}
	return f.StopFunc()
}

func missingApplyError(name string) *Error {
	if name == "" {
		name = "anonymous"
	}
	return &Error{
		Code:    ErrCodeMissingApply,
		Plugin:  name,
		Message: "plugin has no apply operation",
	}
}

// Register adds a plugin and wires it.
//
// A nil plugin, or a Func without ApplyFunc, fails with MISSING_APPLY.
// Registering the same instance twice logs a warning and does nothing.
// Otherwise the plugin is appended, Start is called if implemented, then
// Apply is called with the dispatcher.
func (d *Dispatcher) Register(p Plugin) error {
	if isAbsent(p) {
		return missingApplyError("")
	}
	if f, ok := p.(*Func); ok && f.ApplyFunc == nil {
		return missingApplyError(f.Name())
	}

	d.mu.Lock()
	if d.indexOf(p) >= 0 {
		d.mu.Unlock()
		d.logger.Warn("plugin already registered", "plugin", pluginName(p))
		return nil
	}
	d.plugins = append(d.plugins, p)
	d.mu.Unlock()

	if s, ok := p.(Starter); ok {
		if err := s.Start(); err != nil {
			return &Error{Code: ErrCodeCallback, Plugin: pluginName(p), Message: "plugin start failed", Err: err}
		}
	}

	// Apply runs without the lock held so it can call Attach and Declare.
	if err := p.Apply(d); err != nil {
		var he *Error
		if errors.As(err, &he) {
			return err
		}
		return &Error{Code: ErrCodeCallback, Plugin: pluginName(p), Message: "plugin apply failed", Err: err}
	}

	d.logger.Debug("plugin registered", "plugin", pluginName(p))
	return nil
}

// Remove stops and removes a registered plugin. Callbacks the plugin
// attached stay attached. Removing an unknown plugin is a no-op. If Stop
// fails the plugin stays registered.
func (d *Dispatcher) Remove(p Plugin) error {
	if isAbsent(p) {
		return nil
	}

	d.mu.RLock()
	registered := d.indexOf(p) >= 0
	d.mu.RUnlock()
	if !registered {
		return nil
	}

	if err := stopPlugin(p); err != nil {
		return err
	}

	d.mu.Lock()
	if idx := d.indexOf(p); idx >= 0 {
		d.plugins = slices.Delete(d.plugins, idx, idx+1)
	}
	d.mu.Unlock()
	return nil
}

// Clear stops every plugin, then erases plugins, hooks and the run context.
// All Stop errors are joined. Plugins whose Stop failed stay registered and
// nothing else is erased.
func (d *Dispatcher) Clear() error {
	d.mu.RLock()
	plugins := slices.Clone(d.plugins)
	d.mu.RUnlock()

	var (
		errs   []error
		failed []Plugin
	)
	for _, p := range plugins {
		if err := stopPlugin(p); err != nil {
			errs = append(errs, err)
			failed = append(failed, p)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(failed) > 0 {
		d.plugins = failed
		return errors.Join(errs...)
	}
	d.plugins = nil
	d.hooks = make(map[string]*hook)
	d.order = nil
	d.context.reset()
	return nil
}

// Plugins returns the registered plugins in registration order.
func (d *Dispatcher) Plugins() []Plugin {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.plugins)
}

// indexOf finds p by instance identity. Caller holds d.mu.
func (d *Dispatcher) indexOf(p Plugin) int {
	if !reflect.TypeOf(p).Comparable() {
		return -1
	}
	for i, existing := range d.plugins {
		if reflect.TypeOf(existing) == reflect.TypeOf(p) && existing == p {
			return i
		}
	}
	return -1
}

func stopPlugin(p Plugin) error {
	s, ok := p.(Stopper)
	if !ok {
		return nil
	}
	if err := s.Stop(); err != nil {
		return &Error{Code: ErrCodeCallback, Plugin: pluginName(p), Message: "plugin stop failed", Err: err}
	}
	return nil
}

func pluginName(p Plugin) string {
	if name := p.Name(); name != "" {
		return name
	}
	return reflect.TypeOf(p).String()
}
