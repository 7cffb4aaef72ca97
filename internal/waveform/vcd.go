package waveform

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/roach88/rtlfuzz/internal/design"
)

// vcdWriter encodes signals in Value Change Dump format.
// Output is buffered until flush.
type vcdWriter struct {
	w         *bufio.Writer
	timescale string
	version   string
	signals   []vcdSignal
	wroteHead bool
}

type vcdSignal struct {
	id   string
	sig  design.Signal
	last uint64
}

// scopeNode groups signals by hierarchy, preserving registration order.
type scopeNode struct {
	name     string
	children []*scopeNode
	signals  []int
}

func newVCDWriter(w io.Writer, timescale, version string) *vcdWriter {
	return &vcdWriter{
		w:         bufio.NewWriter(w),
		timescale: timescale,
		version:   version,
	}
}

func (v *vcdWriter) add(sig design.Signal) {
	v.signals = append(v.signals, vcdSignal{id: vcdID(len(v.signals)), sig: sig})
}

// dump writes one timestamped record. The first record carries the header
// and a full $dumpvars block; later records carry only changed values.
func (v *vcdWriter) dump(ts uint64) error {
	if !v.wroteHead {
		if err := v.header(); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(v.w, "#%d\n", ts); err != nil {
		return err
	}

	if !v.wroteHead {
		v.wroteHead = true
		fmt.Fprintln(v.w, "$dumpvars")
		for i := range v.signals {
			s := &v.signals[i]
			s.last = sample(s.sig)
			v.writeValue(s)
		}
		_, err := fmt.Fprintln(v.w, "$end")
		return err
	}

	for i := range v.signals {
		s := &v.signals[i]
		val := sample(s.sig)
		if val == s.last {
			continue
		}
		s.last = val
		v.writeValue(s)
	}
	return nil
}

func (v *vcdWriter) flush() error {
	return v.w.Flush()
}

func (v *vcdWriter) header() error {
	fmt.Fprintf(v.w, "$version %s $end\n", v.version)
	fmt.Fprintf(v.w, "$timescale %s $end\n", v.timescale)

	root := &scopeNode{}
	for i, s := range v.signals {
		node := root
		for _, name := range s.sig.Scope {
			node = node.child(name)
		}
		node.signals = append(node.signals, i)
	}
	for _, i := range root.signals {
		v.writeVar(&v.signals[i])
	}
	for _, c := range root.children {
		v.writeScope(c)
	}

	_, err := fmt.Fprintln(v.w, "$enddefinitions $end")
	return err
}

func (v *vcdWriter) writeScope(n *scopeNode) {
	fmt.Fprintf(v.w, "$scope module %s $end\n", n.name)
	for _, i := range n.signals {
		v.writeVar(&v.signals[i])
	}
	for _, c := range n.children {
		v.writeScope(c)
	}
	fmt.Fprintln(v.w, "$upscope $end")
}

func (v *vcdWriter) writeVar(s *vcdSignal) {
	if s.sig.Width == 1 {
		fmt.Fprintf(v.w, "$var wire 1 %s %s $end\n", s.id, s.sig.Name)
		return
	}
	fmt.Fprintf(v.w, "$var wire %d %s %s [%d:0] $end\n", s.sig.Width, s.id, s.sig.Name, s.sig.Width-1)
}

func (v *vcdWriter) writeValue(s *vcdSignal) {
	if s.sig.Width == 1 {
		fmt.Fprintf(v.w, "%d%s\n", s.last, s.id)
		return
	}
	fmt.Fprintf(v.w, "b%s %s\n", strconv.FormatUint(s.last, 2), s.id)
}

func (n *scopeNode) child(name string) *scopeNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	c := &scopeNode{name: name}
	n.children = append(n.children, c)
	return c
}

// sample reads a signal and masks it to its width.
func sample(sig design.Signal) uint64 {
	v := sig.Sample()
	if sig.Width < 64 {
		v &= (uint64(1) << sig.Width) - 1
	}
	return v
}

// vcdID returns the short identifier code for the n-th signal, using the
// printable ASCII range '!' to '~'.
func vcdID(n int) string {
	const first, span = '!', '~' - '!' + 1
	var id []byte
	for {
		id = append(id, byte(first+n%span))
		n = n/span - 1
		if n < 0 {
			break
		}
	}
	return string(id)
}
