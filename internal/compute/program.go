package compute

import (
	"fmt"
	"strings"
)

// Program is a named set of kernels built together.
type Program struct {
	Name    string
	Flags   string
	kernels []Kernel
	log     strings.Builder
	built   bool
}

func NewProgram(name, flags string, kernels ...Kernel) *Program {
	return &Program{Name: name, Flags: flags, kernels: kernels}
}

func (p *Program) Kernels() []Kernel { return p.kernels }

// BuildLog returns the diagnostics written by the last build.
func (p *Program) BuildLog() string { return p.log.String() }

func (p *Program) Built() bool { return p.built }

// compile checks every kernel and records one log line per kernel.
func (p *Program) compile() error {
	p.log.Reset()
	p.built = false
	fmt.Fprintf(&p.log, "program %q flags=%q\n", p.Name, p.Flags)

	if len(p.kernels) == 0 {
		fmt.Fprintf(&p.log, "error: no kernels\n")
		return fmt.Errorf("%w: program %q has no kernels", ErrBuild, p.Name)
	}

	seen := make(map[string]bool, len(p.kernels))
	for i, k := range p.kernels {
		if k == nil {
			fmt.Fprintf(&p.log, "error: kernel %d is nil\n", i)
			return fmt.Errorf("%w: kernel %d of program %q is nil", ErrBuild, i, p.Name)
		}
		name := k.Name()
		if name == "" {
			fmt.Fprintf(&p.log, "error: kernel %d has no name\n", i)
			return fmt.Errorf("%w: kernel %d of program %q has no name", ErrBuild, i, p.Name)
		}
		if seen[name] {
			fmt.Fprintf(&p.log, "error: duplicate kernel %s\n", name)
			return fmt.Errorf("%w: duplicate kernel %q in program %q", ErrBuild, name, p.Name)
		}
		seen[name] = true
		fmt.Fprintf(&p.log, "kernel %s: ok\n", name)
	}

	p.built = true
	return nil
}
