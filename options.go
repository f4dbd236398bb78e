package nbio

import (
	"errors"

	"github.com/joeycumines/logiface"
)

const (
	defaultMaxSlots      = 1024
	defaultFreeListNodes = 256
)

// config holds resolved construction options for a Runtime.
type config struct {
	logger        *logiface.Logger[logiface.Event]
	maxSlots      int
	freeListNodes int
	heapSize      int
}

// Option configures a Runtime instance.
type Option interface {
	apply(*config) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyFunc func(*config) error
}

func (o *optionImpl) apply(cfg *config) error {
	return o.applyFunc(cfg)
}

// WithMaxSlots sets the fixed capacity of the task slot table. The default
// is 1024. Once every slot is live, Register returns an invalid handle
// until a task completes.
func WithMaxSlots(n int) Option {
	return &optionImpl{func(cfg *config) error {
		if n < 1 || n > 1<<20 {
			return errors.New("nbio: max slots out of range")
		}
		cfg.maxSlots = n
		return nil
	}}
}

// WithFreeListNodes bounds the ready-stack node free list. The default is
// 256. Nodes spent beyond the bound are abandoned to the arena, trading a
// bounded leak for allocation-free steady-state scheduling.
func WithFreeListNodes(n int) Option {
	return &optionImpl{func(cfg *config) error {
		if n < 0 {
			return errors.New("nbio: free list bound must be non-negative")
		}
		cfg.freeListNodes = n
		return nil
	}}
}

// WithHeapSize sets the size of the anonymous mapping backing the
// process-global arena. The default is 16 MiB. The arena is mapped once,
// on the first allocation anywhere in the process; an override configured
// after that point has no effect.
func WithHeapSize(n int) Option {
	return &optionImpl{func(cfg *config) error {
		if n < 1 {
			return errors.New("nbio: heap size must be positive")
		}
		cfg.heapSize = n
		return nil
	}}
}

// WithLogger sets a structured logger for this runtime, overriding the
// package-level logger installed via SetLogger. A nil logger falls back to
// the package-level one.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(cfg *config) error {
		cfg.logger = logger
		return nil
	}}
}

// resolveOptions applies Option instances over the defaults.
func resolveOptions(opts []Option) (*config, error) {
	cfg := &config{
		maxSlots:      defaultMaxSlots,
		freeListNodes: defaultFreeListNodes,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
