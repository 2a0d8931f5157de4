package engine

import (
	"fmt"

	"github.com/roach88/sweep/internal/filterir"
	"github.com/roach88/sweep/internal/ir"
)

// Option adjusts one field of a traversal configuration.
//
// Options are applied in order: engine defaults first, then the per-call
// options, so a later option wins. A bare Filter is an Option.
type Option interface {
	apply(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) apply(cfg *Config) { f(cfg) }

// Config is the canonical configuration of one traversal call.
type Config struct {
	// Shape holds every control-flow field. Shape.Filters mirrors
	// len(Filters) so that the filter count reaches the fingerprint.
	Shape ir.Shape

	Filters    []Filter
	Aggregator Aggregator

	OnPassEnd  func(*Context)
	OnComplete func(result any)
	OnError    func(err error)

	// RequireMutable rejects kinds that cannot be written to before any
	// element is visited.
	RequireMutable bool
}

// Resolve merges defaults and per-call options into a Config with every
// field populated. It never fails: window values are validated when the
// plan is built.
func Resolve(defaults []Option, call ...Option) Config {
	cfg := Config{Shape: ir.DefaultShape()}
	for _, opt := range defaults {
		if opt != nil {
			opt.apply(&cfg)
		}
	}
	for _, opt := range call {
		if opt != nil {
			opt.apply(&cfg)
		}
	}
	cfg.Shape.Filters = len(cfg.Filters)
	if cfg.Aggregator == nil {
		cfg.Aggregator = Discard()
	}
	return cfg
}

// First stops at the first selected element.
func First() Option {
	return optionFunc(func(c *Config) { c.Shape.Mult = false })
}

// Count stops after n selected elements.
func Count(n int) Option {
	return optionFunc(func(c *Config) { c.Shape.Count = n })
}

// From skips the first n elements that pass the filters.
func From(n int) Option {
	return optionFunc(func(c *Config) { c.Shape.From = n })
}

// Window restricts the traversal to positions start..end inclusive.
func Window(start, end int) Option {
	return optionFunc(func(c *Config) {
		c.Shape.StartIndex = start
		c.Shape.EndIndex = end
	})
}

func StartAt(start int) Option {
	return optionFunc(func(c *Config) { c.Shape.StartIndex = start })
}

func EndAt(end int) Option {
	return optionFunc(func(c *Config) { c.Shape.EndIndex = end })
}

// Reverse traverses in reverse order. Windows apply to the reversed order.
func Reverse() Option {
	return optionFunc(func(c *Config) { c.Shape.Reverse = true })
}

// InverseFilter selects the elements the filter chain rejects. It has no
// effect without filters.
func InverseFilter() Option {
	return optionFunc(func(c *Config) { c.Shape.InverseFilter = true })
}

// Own selects which mapping keys are visited.
func Own(mode ir.OwnMode) Option {
	return optionFunc(func(c *Config) { c.Shape.NotOwn = mode })
}

// Live re-validates the window against the current collection size at
// every step instead of working on a snapshot.
func Live() Option {
	return optionFunc(func(c *Config) { c.Shape.Live = true })
}

// WithDescriptor delivers a Descriptor as the element value.
func WithDescriptor() Option {
	return optionFunc(func(c *Config) { c.Shape.WithDescriptor = true })
}

// Async runs the traversal as a scheduler task.
func Async() Option {
	return optionFunc(func(c *Config) { c.Shape.Async = true })
}

// Cooperative runs the traversal as a scheduler task at the given priority.
func Cooperative(p ir.Priority) Option {
	return optionFunc(func(c *Config) {
		c.Shape.Thread = true
		c.Shape.Priority = p
	})
}

// Priority sets the time-slice tier without enabling cooperation.
func Priority(p ir.Priority) Option {
	return optionFunc(func(c *Config) { c.Shape.Priority = p })
}

// Filters appends filters to the chain.
func Filters(fs ...Filter) Option {
	return optionFunc(func(c *Config) { c.Filters = append(c.Filters, fs...) })
}

// Where appends a declarative predicate as a filter. The predicate sees
// the element value, or the Descriptor under WithDescriptor.
func Where(p filterir.Predicate) Filter {
	return func(el Element, _ *Context) (bool, error) {
		return filterir.Eval(p, el.Value)
	}
}

// Aggregate sets the result accumulation strategy.
func Aggregate(a Aggregator) Option {
	return optionFunc(func(c *Config) { c.Aggregator = a })
}

// OnPassEnd runs after every completed pass, restarted ones included.
func OnPassEnd(fn func(*Context)) Option {
	return optionFunc(func(c *Config) { c.OnPassEnd = fn })
}

// OnComplete receives the final result of a successful traversal.
func OnComplete(fn func(result any)) Option {
	return optionFunc(func(c *Config) { c.OnComplete = fn })
}

// OnError receives the cause of a failed traversal before the run fails.
func OnError(fn func(err error)) Option {
	return optionFunc(func(c *Config) { c.OnError = fn })
}

// RequireMutable declares that the callback writes to the collection.
func RequireMutable() Option {
	return optionFunc(func(c *Config) { c.RequireMutable = true })
}

// SpecOptions converts a declarative spec into options. The where clause,
// if any, is decoded and validated into a single filter.
func SpecOptions(spec ir.TraversalSpec) ([]Option, error) {
	shape, err := spec.Shape()
	if err != nil {
		return nil, fmt.Errorf("spec %q: %w", spec.Name, err)
	}
	opts := []Option{optionFunc(func(c *Config) {
		filters := c.Shape.Filters
		c.Shape = shape
		c.Shape.Filters = filters
	})}
	if len(spec.Where) > 0 {
		pred, err := filterir.Decode(spec.Where)
		if err != nil {
			return nil, fmt.Errorf("spec %q: where: %w", spec.Name, err)
		}
		if err := filterir.Validate(pred); err != nil {
			return nil, fmt.Errorf("spec %q: where: %w", spec.Name, err)
		}
		opts = append(opts, Where(pred))
	}
	return opts, nil
}
