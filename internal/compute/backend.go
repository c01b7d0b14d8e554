package compute

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// Kind selects the device profile requested on the command line.
type Kind string

const (
	CPU Kind = "cpu"
	GPU Kind = "gpu"
)

// ParseKind maps a command-line device name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case CPU:
		return CPU, nil
	case GPU:
		return GPU, nil
	}
	return "", &Error{Op: "open", Err: fmt.Errorf("%w: unknown device %q (want cpu or gpu)", ErrDevice, s)}
}

// DefaultWorkItems returns the work-item count used when none is given.
func DefaultWorkItems(k Kind) int {
	if k == CPU {
		return 16
	}
	return 1024
}

// Kernel is a data-parallel function executed once per work item.
// A kernel must only write memory owned by item.
type Kernel interface {
	Name() string
	Exec(item, size int) error
}

// Backend is a compute device: it owns buffers, builds programs and runs
// kernels. Every call blocks until the device has finished the operation.
type Backend interface {
	Name() string
	Kind() Kind
	Available() bool
	WorkItems() int
	Alloc(name string, n int) (*Buffer, error)
	Write(dst *Buffer, src []float64) error
	Read(src *Buffer, dst []float64) error
	Build(p *Program) error
	Launch(k Kernel) error
	Stats() Stats
	Release()
}

type options struct {
	logger *log.Logger
	lanes  int
}

// Option configures a device at Open time.
type Option func(*options)

// WithLogger routes device diagnostics (build logs, dispatch timing) to l.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLanes sets how many host goroutines execute work items.
func WithLanes(n int) Option {
	return func(o *options) { o.lanes = n }
}

// Open initializes a device of the given kind with a fixed work-item count.
//
// No native accelerator is compiled into this build, so both kinds are served
// by the host emulation; the gpu kind only changes the default profile.
func Open(kind Kind, workItems int, opts ...Option) (Backend, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard)
	}

	if kind != CPU && kind != GPU {
		return nil, &Error{Op: "open", Err: fmt.Errorf("%w: unknown device %q", ErrDevice, kind)}
	}
	if workItems <= 0 {
		return nil, &Error{Op: "open", Err: fmt.Errorf("%w: work item count must be positive, got %d", ErrDevice, workItems)}
	}

	b := newHostBackend(kind, workItems, o)
	if kind == GPU {
		o.logger.Warn("no native accelerator compiled in, emulating gpu on host", "work_items", workItems, "lanes", b.lanes)
	}
	o.logger.Debug("device initialized", "device", b.Name(), "work_items", workItems)
	return b, nil
}
