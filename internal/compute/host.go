package compute

import (
	"fmt"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Stats accumulates device activity over the lifetime of a backend.
type Stats struct {
	Dispatches   int
	BytesRead    int64
	BytesWritten int64
	KernelTime   map[string]time.Duration
}

// HostBackend executes kernels on a fixed pool of host goroutines. Work items
// are split into contiguous ranges, one per lane, so that each lane runs many
// items back to back.
type HostBackend struct {
	kind     Kind
	items    int
	lanes    int
	logger   *log.Logger
	buffers  map[string]*Buffer
	built    map[string]bool
	stats    Stats
	released bool
}

func newHostBackend(kind Kind, items int, o options) *HostBackend {
	lanes := o.lanes
	if lanes <= 0 {
		lanes = runtime.NumCPU()
	}
	if lanes > items {
		lanes = items
	}
	return &HostBackend{
		kind:    kind,
		items:   items,
		lanes:   lanes,
		logger:  o.logger,
		buffers: make(map[string]*Buffer),
		built:   make(map[string]bool),
		stats:   Stats{KernelTime: make(map[string]time.Duration)},
	}
}

func (h *HostBackend) Name() string    { return fmt.Sprintf("%s (host emulation, %d lanes)", h.kind, h.lanes) }
func (h *HostBackend) Kind() Kind      { return h.kind }
func (h *HostBackend) Available() bool { return !h.released }
func (h *HostBackend) WorkItems() int  { return h.items }

func (h *HostBackend) Stats() Stats {
	s := h.stats
	s.KernelTime = make(map[string]time.Duration, len(h.stats.KernelTime))
	for k, v := range h.stats.KernelTime {
		s.KernelTime[k] = v
	}
	return s
}

func (h *HostBackend) Alloc(name string, n int) (*Buffer, error) {
	if h.released {
		return nil, &Error{Op: "alloc", Target: name, Err: ErrDevice}
	}
	if n <= 0 {
		return nil, &Error{Op: "alloc", Target: name, Err: fmt.Errorf("%w: length %d", ErrAlloc, n)}
	}
	if _, ok := h.buffers[name]; ok {
		return nil, &Error{Op: "alloc", Target: name, Err: fmt.Errorf("%w: name already in use", ErrAlloc)}
	}
	b := &Buffer{name: name, data: make([]float64, n)}
	h.buffers[name] = b
	return b, nil
}

func (h *HostBackend) checkBuffer(op string, b *Buffer, n int) error {
	if h.released {
		return &Error{Op: op, Err: ErrDevice}
	}
	if b == nil {
		return &Error{Op: op, Err: fmt.Errorf("%w: nil buffer", ErrTransfer)}
	}
	if b.released || h.buffers[b.name] != b {
		return &Error{Op: op, Target: b.name, Err: fmt.Errorf("%w: buffer not owned by this device", ErrTransfer)}
	}
	if n != len(b.data) {
		return &Error{Op: op, Target: b.name, Err: fmt.Errorf("%w: host length %d, device length %d", ErrTransfer, n, len(b.data))}
	}
	return nil
}

func (h *HostBackend) Write(dst *Buffer, src []float64) error {
	if err := h.checkBuffer("write", dst, len(src)); err != nil {
		return err
	}
	copy(dst.data, src)
	h.stats.BytesWritten += int64(8 * len(src))
	return nil
}

func (h *HostBackend) Read(src *Buffer, dst []float64) error {
	if err := h.checkBuffer("read", src, len(dst)); err != nil {
		return err
	}
	copy(dst, src.data)
	h.stats.BytesRead += int64(8 * len(dst))
	return nil
}

func (h *HostBackend) Build(p *Program) error {
	if h.released {
		return &Error{Op: "build", Target: p.Name, Err: ErrDevice}
	}
	err := p.compile()
	h.logger.Debug("program build log", "program", p.Name, "log", p.BuildLog())
	if err != nil {
		return &Error{Op: "build", Target: p.Name, Err: err}
	}
	for _, k := range p.kernels {
		h.built[k.Name()] = true
	}
	return nil
}

// Launch runs k for every work item and returns once all have finished. The
// first failing work item cancels nothing already running but its error is
// the one reported.
func (h *HostBackend) Launch(k Kernel) error {
	if h.released {
		return &Error{Op: "launch", Err: ErrDevice}
	}
	if k == nil {
		return &Error{Op: "launch", Err: fmt.Errorf("%w: nil kernel", ErrDispatch)}
	}
	name := k.Name()
	if !h.built[name] {
		return &Error{Op: "launch", Target: name, Err: fmt.Errorf("%w: kernel not built", ErrDispatch)}
	}

	start := time.Now()
	chunk := (h.items + h.lanes - 1) / h.lanes

	var g errgroup.Group
	for lane := 0; lane < h.lanes; lane++ {
		first := lane * chunk
		last := first + chunk
		if last > h.items {
			last = h.items
		}
		g.Go(func() error {
			for item := first; item < last; item++ {
				if err := k.Exec(item, h.items); err != nil {
					return fmt.Errorf("work item %d: %w", item, err)
				}
			}
			return nil
		})
	}
	err := g.Wait()

	elapsed := time.Since(start)
	h.stats.Dispatches++
	h.stats.KernelTime[name] += elapsed
	if err != nil {
		return &Error{Op: "launch", Target: name, Err: fmt.Errorf("%w: %w", ErrDispatch, err)}
	}
	return nil
}

// Release frees every buffer. Further calls on the device fail with ErrDevice.
func (h *HostBackend) Release() {
	if h.released {
		return
	}
	for name, b := range h.buffers {
		b.released = true
		b.data = nil
		delete(h.buffers, name)
	}
	h.released = true
	h.logger.Debug("device released", "dispatches", h.stats.Dispatches,
		"bytes_read", h.stats.BytesRead, "bytes_written", h.stats.BytesWritten)
}
