// Package design defines the boundary between the harness and a simulated
// hardware module, plus a few built-in modules.
//
// The harness treats a module strictly as set-inputs, evaluate, read-outputs.
// Port widths are fixed when the module is constructed.
package design

import "fmt"

// WordBits is the width of one port word.
const WordBits = 32

// Module is a simulated hardware module with one input and one output port.
type Module interface {
	// Name identifies the design.
	Name() string

	// Inputs returns the input port words. The harness writes them in place
	// before each evaluation.
	Inputs() []uint32

	// Outputs returns the output port words as of the last evaluation.
	Outputs() []uint32

	// Eval advances the module by one delta step on the current inputs.
	Eval()
}

// Traceable is implemented by modules that expose signals for waveform dumps.
type Traceable interface {
	// Trace registers the module's signals up to depth levels of hierarchy.
	Trace(r Registrar, depth int)
}

// Seeder is implemented by modules that consult randomness internally.
type Seeder interface {
	Seed(seed int64)
}

// Signal describes one traced value.
type Signal struct {
	// Scope is the hierarchical path, outermost first (e.g. ["top", "core"]).
	Scope []string
	// Name is the signal name within its scope.
	Name string
	// Width is the bit width, 1 to 64.
	Width int
	// Sample reads the current value. Bits above Width are ignored.
	Sample func() uint64
}

// Registrar collects signals for tracing.
type Registrar interface {
	Register(sig Signal)
}

// Geometry fixes a module's port widths in bits.
type Geometry struct {
	InputBits  int
	OutputBits int
}

// InputWords returns the number of 32-bit words on the input port.
func (g Geometry) InputWords() int {
	return words(g.InputBits)
}

// OutputWords returns the number of 32-bit words on the output port.
func (g Geometry) OutputWords() int {
	return words(g.OutputBits)
}

// Validate checks that both ports are at least one bit wide.
func (g Geometry) Validate() error {
	if g.InputBits <= 0 {
		return fmt.Errorf("input width must be positive, got %d", g.InputBits)
	}
	if g.OutputBits <= 0 {
		return fmt.Errorf("output width must be positive, got %d", g.OutputBits)
	}
	return nil
}

func words(bits int) int {
	if bits <= 0 {
		return 0
	}
	return (bits + WordBits - 1) / WordBits
}

// ports is the storage shared by the built-in designs.
type ports struct {
	geom Geometry
	in   []uint32
	out  []uint32
}

func newPorts(g Geometry) ports {
	return ports{
		geom: g,
		in:   make([]uint32, g.InputWords()),
		out:  make([]uint32, g.OutputWords()),
	}
}

func (p *ports) Inputs() []uint32  { return p.in }
func (p *ports) Outputs() []uint32 { return p.out }

// maskTop clears output bits beyond the declared width.
func (p *ports) maskTop() {
	rem := p.geom.OutputBits % WordBits
	if rem == 0 || len(p.out) == 0 {
		return
	}
	p.out[len(p.out)-1] &= (1 << rem) - 1
}

// tracePorts registers each port word as a 32-bit signal under top.
func (p *ports) tracePorts(r Registrar) {
	for i := range p.in {
		i := i
		r.Register(Signal{
			Scope: []string{"top"},
			Name:  fmt.Sprintf("in_data_%d", i),
			Width: WordBits,
			Sample: func() uint64 { return uint64(p.in[i]) },
		})
	}
	for i := range p.out {
		i := i
		r.Register(Signal{
			Scope: []string{"top"},
			Name:  fmt.Sprintf("out_data_%d", i),
			Width: WordBits,
			Sample: func() uint64 { return uint64(p.out[i]) },
		})
	}
}
