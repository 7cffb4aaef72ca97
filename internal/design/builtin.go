package design

import (
	"fmt"
	"sort"
)

// Constructor builds a module with the given port geometry.
type Constructor func(g Geometry) Module

var builtins = map[string]Constructor{
	"passthrough": func(g Geometry) Module { return NewPassthrough(g) },
	"accumulator": func(g Geometry) Module { return NewAccumulator(g) },
	"xorshift":    func(g Geometry) Module { return NewXorshift(g) },
}

// Names returns the built-in design names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Exists reports whether name is a built-in design.
func Exists(name string) bool {
	_, ok := builtins[name]
	return ok
}

// New builds the named design.
func New(name string, g Geometry) (Module, error) {
	ctor, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown design %q: must be one of %v", name, Names())
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("design %s: %w", name, err)
	}
	return ctor(g), nil
}

// Passthrough drives each output word from the input word at the same index,
// wrapping around the input port when the output is wider.
type Passthrough struct {
	ports
}

// NewPassthrough creates a Passthrough module.
func NewPassthrough(g Geometry) *Passthrough {
	return &Passthrough{ports: newPorts(g)}
}

func (m *Passthrough) Name() string { return "passthrough" }

func (m *Passthrough) Eval() {
	for i := range m.out {
		m.out[i] = m.in[i%len(m.in)]
	}
	m.maskTop()
}

func (m *Passthrough) Trace(r Registrar, depth int) {
	m.tracePorts(r)
}

// Accumulator is a sequential design: a 64-bit register adds the sum of the
// input words on every evaluation. Output word i carries the low (even i) or
// high (odd i) half of the register, XORed with i.
type Accumulator struct {
	ports
	acc uint64
}

// NewAccumulator creates an Accumulator module with a cleared register.
func NewAccumulator(g Geometry) *Accumulator {
	return &Accumulator{ports: newPorts(g)}
}

func (m *Accumulator) Name() string { return "accumulator" }

func (m *Accumulator) Eval() {
	for _, w := range m.in {
		m.acc += uint64(w)
	}
	for i := range m.out {
		m.out[i] = uint32(m.acc>>(WordBits*(i%2))) ^ uint32(i)
	}
	m.maskTop()
}

func (m *Accumulator) Trace(r Registrar, depth int) {
	m.tracePorts(r)
	r.Register(Signal{
		Scope: []string{"top", "core"},
		Name:  "acc",
		Width: 64,
		Sample: func() uint64 { return m.acc },
	})
}

// Xorshift mixes the input port into a 32-bit xorshift state. Each output word
// is the state after one more xorshift round.
type Xorshift struct {
	ports
	state uint32
	last  uint32
}

const xorshiftInit = 0x9E3779B9

// NewXorshift creates an Xorshift module in its reset state.
func NewXorshift(g Geometry) *Xorshift {
	return &Xorshift{ports: newPorts(g), state: xorshiftInit}
}

func (m *Xorshift) Name() string { return "xorshift" }

func (m *Xorshift) Eval() {
	for _, w := range m.in {
		m.state = xorshift32(m.state ^ w)
	}
	if m.state == 0 {
		m.state = xorshiftInit
	}
	s := m.state
	for i := range m.out {
		s = xorshift32(s)
		m.out[i] = s
	}
	m.last = s
	m.maskTop()
}

func (m *Xorshift) Trace(r Registrar, depth int) {
	m.tracePorts(r)
	r.Register(Signal{
		Scope: []string{"top", "core"},
		Name:  "state",
		Width: 32,
		Sample: func() uint64 { return uint64(m.state) },
	})
	r.Register(Signal{
		Scope: []string{"top", "core", "mix"},
		Name:  "round_out",
		Width: 32,
		Sample: func() uint64 { return uint64(m.last) },
	})
	r.Register(Signal{
		Scope: []string{"top", "core", "mix"},
		Name:  "zero",
		Width: 1,
		Sample: func() uint64 {
			if m.last == 0 {
				return 1
			}
			return 0
		},
	})
}

func xorshift32(x uint32) uint32 {
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	return x
}
