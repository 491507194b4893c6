package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/minipack/internal/compiler"
	"github.com/roach88/minipack/internal/hooks"
)

// Transformer rewrites the bundle text.
type Transformer func(bundle string) (string, error)

// Priorities of the builtin transformers. User transformers run at their
// index, so they come first unless there are more than 99 of them.
const (
	TrimPriority      = 99
	UpperCasePriority = 100
)

// Transform threads the rendered bundle through processBundle.
// Options trim and upperCase enable the builtin transformers.
type Transform struct {
	hooks.Base
	transformers []Transformer
}

// NewTransform creates a Transform plugin running transformers in order.
func NewTransform(opts hooks.Options, transformers ...Transformer) *Transform {
	return &Transform{Base: hooks.NewBase("transform", opts), transformers: transformers}
}

// Apply attaches each transformer to processBundle.
func (t *Transform) Apply(d *hooks.Dispatcher) error {
	for i, fn := range t.transformers {
		if err := attachTransformer(d, fmt.Sprintf("transformer %d", i+1), fn, i); err != nil {
			return err
		}
	}
	if t.BoolOption("upperCase", false) {
		if err := attachTransformer(d, "upperCase", upperCase, UpperCasePriority); err != nil {
			return err
		}
	}
	if t.BoolOption("trim", false) {
		if err := attachTransformer(d, "trim", trim, TrimPriority); err != nil {
			return err
		}
	}
	return nil
}

func attachTransformer(d *hooks.Dispatcher, label string, fn Transformer, priority int) error {
	return d.Attach(compiler.HookProcessBundle, func(_ context.Context, args ...any) (any, error) {
		if len(args) == 0 {
			return nil, nil
		}
		bundle, ok := args[0].(string)
		if !ok {
			return args[0], nil
		}
		out, err := fn(bundle)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", label, err)
		}
		return out, nil
	}, hooks.WithPriority(priority))
}

func upperCase(s string) (string, error) {
	return strings.ToUpper(s), nil
}

func trim(s string) (string, error) {
	return strings.TrimSpace(s), nil
}
