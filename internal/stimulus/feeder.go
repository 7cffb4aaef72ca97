package stimulus

// Feeder writes one cycle of stimulus into an input port.
type Feeder interface {
	Feed(port []uint32)
}

// NewFeeder returns the feeder strategy for p reading from buf.
func NewFeeder(p Policy, buf *Buffer) Feeder {
	if p == Seed {
		return &seedFeeder{buf: buf}
	}
	return &fullWidthFeeder{buf: buf}
}

// fullWidthFeeder gives every port word its own buffered word.
type fullWidthFeeder struct {
	buf *Buffer
}

func (f *fullWidthFeeder) Feed(port []uint32) {
	for i := range port {
		port[i] = f.buf.Next()
	}
}

// seedFeeder spreads a single buffered seed across the port as seed+i.
type seedFeeder struct {
	buf *Buffer
}

func (f *seedFeeder) Feed(port []uint32) {
	seed := f.buf.Next()
	for i := range port {
		port[i] = seed + uint32(i)
	}
}
