package sim

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rtlfuzz/internal/design"
	"github.com/roach88/rtlfuzz/internal/stimulus"
	"github.com/roach88/rtlfuzz/internal/testutil"
)

// scriptedModule plays back a fixed output sequence and records its inputs.
type scriptedModule struct {
	in     []uint32
	out    []uint32
	script [][]uint32
	seen   [][]uint32
	evals  int
	seed   int64
	seeded bool
}

func newScripted(inWords int, script ...[]uint32) *scriptedModule {
	outWords := 1
	if len(script) > 0 {
		outWords = len(script[0])
	}
	return &scriptedModule{
		in:     make([]uint32, inWords),
		out:    make([]uint32, outWords),
		script: script,
	}
}

func (m *scriptedModule) Name() string      { return "scripted" }
func (m *scriptedModule) Inputs() []uint32  { return m.in }
func (m *scriptedModule) Outputs() []uint32 { return m.out }

func (m *scriptedModule) Eval() {
	m.seen = append(m.seen, append([]uint32(nil), m.in...))
	if m.evals < len(m.script) {
		copy(m.out, m.script[m.evals])
	}
	m.evals++
}

func (m *scriptedModule) Seed(seed int64) {
	m.seed = seed
	m.seeded = true
}

func writeStimulus(t *testing.T, values ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stimulus.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(values, "\n")+"\n"), 0644))
	return path
}

func stepClock() func() time.Time {
	return testutil.NewStepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Millisecond).Now
}

func TestScenario_ThreeTicks(t *testing.T) {
	m := newScripted(1, []uint32{10}, []uint32{20}, []uint32{30})
	var out bytes.Buffer

	h, err := New(m, &stimulus.Source{}, Options{
		SimLen:       3,
		Policy:       stimulus.FullWidth,
		StimulusPath: writeStimulus(t, "1", "2", "3"),
		Out:          &out,
		Now:          stepClock(),
	})
	require.NoError(t, err)

	res, err := h.Run()
	require.NoError(t, err)
	require.NoError(t, h.Close())

	assert.Equal(t, Signature(60), res.Signature)
	assert.Equal(t, 3, res.Ticks)
	assert.Positive(t, res.Duration)
	assert.Equal(t, 3, m.evals)
	assert.Equal(t, 3, strings.Count(out.String(), "\n"))

	require.NoError(t, Report(&out, res))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "three_ticks", out.Bytes())
}

func TestScenario_ShortStimulusAbortsBeforeOutput(t *testing.T) {
	m := newScripted(1, []uint32{1})
	var out bytes.Buffer

	_, err := New(m, &stimulus.Source{}, Options{
		SimLen:       5,
		Policy:       stimulus.FullWidth,
		StimulusPath: writeStimulus(t, "1", "2", "3", "4"),
		Out:          &out,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, stimulus.ErrStimulusShort))
	assert.Zero(t, out.Len())
	assert.Zero(t, m.evals)
}

func TestScenario_TraceDumpsNPlusOne(t *testing.T) {
	const simlen = 7

	m, err := design.New("accumulator", design.Geometry{InputBits: 64, OutputBits: 64})
	require.NoError(t, err)

	values := make([]string, 2*simlen)
	for i := range values {
		values[i] = "12345"
	}
	tracePath := filepath.Join(t.TempDir(), "dump.vcd")

	h, err := New(m, &stimulus.Source{}, Options{
		SimLen:       simlen,
		Policy:       stimulus.FullWidth,
		StimulusPath: writeStimulus(t, values...),
		TracePath:    tracePath,
		Out:          &bytes.Buffer{},
	})
	require.NoError(t, err)

	res, err := h.Run()
	require.NoError(t, err)
	require.NoError(t, h.Close())
	assert.Equal(t, simlen+1, res.Dumps)

	data, err := os.ReadFile(tracePath)
	require.NoError(t, err)

	var stamps []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "#") {
			stamps = append(stamps, line)
		}
	}
	require.Len(t, stamps, simlen+1)
	for i, s := range stamps {
		assert.Equal(t, "#"+strconv.Itoa(i), s)
	}
}

func TestTrace_DisabledUsesNoopRecorder(t *testing.T) {
	m := newScripted(1, []uint32{1})

	h, err := New(m, &stimulus.Source{}, Options{
		SimLen:       1,
		StimulusPath: writeStimulus(t, "9"),
		Out:          &bytes.Buffer{},
	})
	require.NoError(t, err)
	assert.Nil(t, h.session)
	assert.IsType(t, nopRecorder{}, h.recorder)

	res, err := h.Run()
	require.NoError(t, err)
	assert.Zero(t, res.Dumps)
}

func TestFullWidthPolicy_FeedsFileOrder(t *testing.T) {
	m := newScripted(3, []uint32{0}, []uint32{0})

	h, err := New(m, &stimulus.Source{}, Options{
		SimLen:       2,
		Policy:       stimulus.FullWidth,
		StimulusPath: writeStimulus(t, "1", "2", "3", "4", "5", "6"),
		Out:          &bytes.Buffer{},
	})
	require.NoError(t, err)
	_, err = h.Run()
	require.NoError(t, err)

	assert.Equal(t, [][]uint32{{1, 2, 3}, {4, 5, 6}}, m.seen)
}

func TestSeedPolicy_FeedsSeedPlusIndex(t *testing.T) {
	m := newScripted(4, []uint32{0}, []uint32{0})

	h, err := New(m, &stimulus.Source{}, Options{
		SimLen:       2,
		Policy:       stimulus.Seed,
		StimulusPath: writeStimulus(t, "4294967295", "100"),
		Out:          &bytes.Buffer{},
	})
	require.NoError(t, err)
	_, err = h.Run()
	require.NoError(t, err)

	assert.Equal(t, [][]uint32{
		{0xFFFFFFFF, 0, 1, 2},
		{100, 101, 102, 103},
	}, m.seen)
}

func TestSignature_SumsAllWordsInOrder(t *testing.T) {
	m := newScripted(1,
		[]uint32{0xFFFFFFFF, 1, 2},
		[]uint32{3, 0xFFFFFFFF, 4},
	)
	var out bytes.Buffer

	h, err := New(m, &stimulus.Source{}, Options{
		SimLen:       2,
		StimulusPath: writeStimulus(t, "0", "0"),
		Out:          &out,
	})
	require.NoError(t, err)
	res, err := h.Run()
	require.NoError(t, err)

	want := uint64(0xFFFFFFFF) + 1 + 2 + 3 + 0xFFFFFFFF + 4
	assert.Equal(t, Signature(want), res.Signature)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		"output [31:0] (tick 0) = 0xffffffff",
		"output [63:32] (tick 0) = 0x1",
		"output [95:64] (tick 0) = 0x2",
		"output [31:0] (tick 1) = 0x3",
		"output [63:32] (tick 1) = 0xffffffff",
		"output [95:64] (tick 1) = 0x4",
	}, lines)
}

func TestSignature_Wraps(t *testing.T) {
	s := Signature(math.MaxUint64)
	assert.Equal(t, Signature(0), s.Add(1))
	assert.Equal(t, Signature(0xFFFFFFFE), s.Add(0xFFFFFFFF))
}

func TestRun_IsReproducible(t *testing.T) {
	path := writeStimulus(t, "11", "22", "33", "44", "55", "66", "77", "88")
	geom := design.Geometry{InputBits: 64, OutputBits: 96}

	run := func() Signature {
		m, err := design.New("xorshift", geom)
		require.NoError(t, err)
		h, err := New(m, &stimulus.Source{}, Options{
			SimLen:       4,
			StimulusPath: path,
			Out:          &bytes.Buffer{},
		})
		require.NoError(t, err)
		res, err := h.Run()
		require.NoError(t, err)
		return res.Signature
	}

	assert.Equal(t, run(), run())
}

func TestRun_ZeroCycles(t *testing.T) {
	m := newScripted(1)
	var out bytes.Buffer

	h, err := New(m, &stimulus.Source{}, Options{
		SimLen:       0,
		StimulusPath: writeStimulus(t),
		Out:          &out,
	})
	require.NoError(t, err)
	res, err := h.Run()
	require.NoError(t, err)

	assert.Equal(t, Signature(0), res.Signature)
	assert.Zero(t, out.Len())
	assert.Zero(t, m.evals)
}

func TestNew_NegativeSimLenRejected(t *testing.T) {
	_, err := New(newScripted(1), &stimulus.Source{}, Options{SimLen: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simlen")
}

func TestNew_SharedSourceRejectsSecondHarness(t *testing.T) {
	src := &stimulus.Source{}
	path := writeStimulus(t, "1")

	_, err := New(newScripted(1, []uint32{1}), src, Options{SimLen: 1, StimulusPath: path, Out: &bytes.Buffer{}})
	require.NoError(t, err)

	_, err = New(newScripted(1, []uint32{1}), src, Options{SimLen: 1, StimulusPath: path, Out: &bytes.Buffer{}})
	assert.ErrorIs(t, err, stimulus.ErrAlreadyLoaded)
}

func TestRun_TwiceRejected(t *testing.T) {
	h, err := New(newScripted(1, []uint32{1}), &stimulus.Source{}, Options{
		SimLen:       1,
		StimulusPath: writeStimulus(t, "1"),
		Out:          &bytes.Buffer{},
	})
	require.NoError(t, err)

	_, err = h.Run()
	require.NoError(t, err)
	_, err = h.Run()
	assert.ErrorIs(t, err, ErrAlreadyRan)
}

func TestRun_SeederReceivesWallClockSeed(t *testing.T) {
	m := newScripted(1, []uint32{1})
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	h, err := New(m, &stimulus.Source{}, Options{
		SimLen:       1,
		StimulusPath: writeStimulus(t, "1"),
		Out:          &bytes.Buffer{},
		Now:          func() time.Time { return now },
	})
	require.NoError(t, err)
	_, err = h.Run()
	require.NoError(t, err)

	assert.True(t, m.seeded)
	assert.Equal(t, now.UnixNano(), m.seed)
}

func TestRun_SeedIsStartReading(t *testing.T) {
	m := newScripted(1, []uint32{1})
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := testutil.NewStepClock(start, time.Millisecond)

	h, err := New(m, &stimulus.Source{}, Options{
		SimLen:       1,
		StimulusPath: writeStimulus(t, "1"),
		Out:          &bytes.Buffer{},
		Now:          clock.Now,
	})
	require.NoError(t, err)
	res, err := h.Run()
	require.NoError(t, err)

	// One reading for the seed and start, one for the end.
	assert.Equal(t, 2, clock.Calls())
	assert.Equal(t, start.Add(time.Millisecond).UnixNano(), m.seed)
	assert.Equal(t, time.Millisecond, res.Duration)
}

func TestNew_UnwritableTracePath(t *testing.T) {
	_, err := New(newScripted(1, []uint32{1}), &stimulus.Source{}, Options{
		SimLen:       1,
		StimulusPath: writeStimulus(t, "1"),
		TracePath:    filepath.Join(t.TempDir(), "no", "such", "dir.vcd"),
		Out:          &bytes.Buffer{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open trace file")
}

func TestHarness_StimulusDigest(t *testing.T) {
	h, err := New(newScripted(1, []uint32{1}, []uint32{2}), &stimulus.Source{}, Options{
		SimLen:       2,
		StimulusPath: writeStimulus(t, "5", "6"),
		Out:          &bytes.Buffer{},
	})
	require.NoError(t, err)
	assert.Equal(t, stimulus.NewBuffer([]uint32{5, 6}).Digest(), h.StimulusDigest())
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestRun_ReportWriteFailure(t *testing.T) {
	h, err := New(newScripted(1, []uint32{1}), &stimulus.Source{}, Options{
		SimLen:       1,
		StimulusPath: writeStimulus(t, "1"),
		Out:          failingWriter{},
	})
	require.NoError(t, err)

	_, err = h.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write report")
}

func TestReport_Format(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Report(&out, Result{Signature: Signature(math.MaxUint64), Duration: 1500 * time.Millisecond}))
	assert.Equal(t, "Testbench complete!\nOutput signature: 18446744073709551615.\nElapsed time: 1500.\n", out.String())
}
