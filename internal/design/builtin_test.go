package design

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRegistrar struct {
	signals []Signal
}

func (r *recordingRegistrar) Register(sig Signal) {
	r.signals = append(r.signals, sig)
}

func TestGeometry_Words(t *testing.T) {
	tests := []struct {
		bits int
		want int
	}{
		{1, 1},
		{32, 1},
		{33, 2},
		{64, 2},
		{100, 4},
		{0, 0},
	}
	for _, tt := range tests {
		g := Geometry{InputBits: tt.bits, OutputBits: tt.bits}
		assert.Equal(t, tt.want, g.InputWords(), "bits=%d", tt.bits)
		assert.Equal(t, tt.want, g.OutputWords(), "bits=%d", tt.bits)
	}
}

func TestNew_UnknownDesign(t *testing.T) {
	_, err := New("nope", Geometry{InputBits: 32, OutputBits: 32})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown design")
}

func TestNew_RejectsBadGeometry(t *testing.T) {
	_, err := New("passthrough", Geometry{InputBits: 0, OutputBits: 32})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input width")

	_, err = New("passthrough", Geometry{InputBits: 32, OutputBits: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output width")
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"accumulator", "passthrough", "xorshift"}, Names())
	for _, name := range Names() {
		assert.True(t, Exists(name))
		m, err := New(name, Geometry{InputBits: 64, OutputBits: 96})
		require.NoError(t, err)
		assert.Equal(t, name, m.Name())
		assert.Len(t, m.Inputs(), 2)
		assert.Len(t, m.Outputs(), 3)
	}
}

func TestPassthrough_WrapsInputs(t *testing.T) {
	m := NewPassthrough(Geometry{InputBits: 64, OutputBits: 96})
	copy(m.Inputs(), []uint32{0xAAAA, 0xBBBB})
	m.Eval()
	assert.Equal(t, []uint32{0xAAAA, 0xBBBB, 0xAAAA}, m.Outputs())
}

func TestPassthrough_MasksPartialWord(t *testing.T) {
	m := NewPassthrough(Geometry{InputBits: 32, OutputBits: 40})
	m.Inputs()[0] = 0xFFFFFFFF
	m.Eval()
	assert.Equal(t, []uint32{0xFFFFFFFF, 0xFF}, m.Outputs())
}

func TestAccumulator_IsSequential(t *testing.T) {
	m := NewAccumulator(Geometry{InputBits: 64, OutputBits: 64})
	copy(m.Inputs(), []uint32{0xFFFFFFFF, 1})
	m.Eval()
	// acc = 0x1_0000_0000
	assert.Equal(t, []uint32{0, 1 ^ 1}, m.Outputs())

	m.Eval()
	// acc = 0x2_0000_0000
	assert.Equal(t, []uint32{0, 2 ^ 1}, m.Outputs())
}

func TestXorshift_Deterministic(t *testing.T) {
	g := Geometry{InputBits: 32, OutputBits: 64}
	a, b := NewXorshift(g), NewXorshift(g)

	for i := uint32(0); i < 10; i++ {
		a.Inputs()[0] = i * 7919
		b.Inputs()[0] = i * 7919
		a.Eval()
		b.Eval()
		require.Equal(t, a.Outputs(), b.Outputs())
	}
	assert.NotEqual(t, a.Outputs()[0], a.Outputs()[1])
}

func TestTrace_RegistersPortsAndInternals(t *testing.T) {
	m := NewXorshift(Geometry{InputBits: 64, OutputBits: 32})
	r := &recordingRegistrar{}
	m.Trace(r, 6)

	var names []string
	for _, s := range r.signals {
		names = append(names, s.Name)
		assert.NotNil(t, s.Sample)
		assert.Positive(t, s.Width)
	}
	assert.Equal(t, []string{"in_data_0", "in_data_1", "out_data_0", "state", "round_out", "zero"}, names)

	m.Inputs()[0] = 5
	m.Eval()
	assert.Equal(t, uint64(5), r.signals[0].Sample())
	assert.Equal(t, uint64(m.Outputs()[0]), r.signals[2].Sample())
}

func TestModules_ImplementTraceable(t *testing.T) {
	for _, name := range Names() {
		m, err := New(name, Geometry{InputBits: 32, OutputBits: 32})
		require.NoError(t, err)
		_, ok := m.(Traceable)
		assert.True(t, ok, name)
	}
}
