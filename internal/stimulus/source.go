package stimulus

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Buffer holds the words read from a stimulus file.
// Words are consumed through a forward-only cursor and never reused.
type Buffer struct {
	words  []uint32
	cursor int
	digest string
}

// NewBuffer wraps words in a Buffer. The slice is not copied.
func NewBuffer(words []uint32) *Buffer {
	return &Buffer{words: words, digest: digestWords(words)}
}

// Len returns the number of words loaded.
func (b *Buffer) Len() int {
	return len(b.words)
}

// Remaining returns the number of words not yet consumed.
func (b *Buffer) Remaining() int {
	return len(b.words) - b.cursor
}

// Next returns the next unconsumed word and advances the cursor.
//
// Sufficiency is checked once at load time, so running past the end means
// the caller fed more cycles than it loaded for. That is a programming error
// and panics.
func (b *Buffer) Next() uint32 {
	if b.cursor >= len(b.words) {
		panic(fmt.Sprintf("stimulus buffer exhausted after %d words", len(b.words)))
	}
	w := b.words[b.cursor]
	b.cursor++
	return w
}

// Digest returns the hex SHA-256 of the loaded words (little-endian).
func (b *Buffer) Digest() string {
	return b.digest
}

// Source is a single-shot stimulus loader.
// The zero value is ready to use.
type Source struct {
	loaded bool
}

// Load reads up to want unsigned integers from the file at path.
//
// Values are whitespace separated and consumed in file order; anything after
// the first want values is ignored. Each value is parsed as a 64-bit unsigned
// integer and truncated to 32 bits. Load fails if the file holds fewer than
// want values, contains a non-integer token before want values were read, or
// if this Source has already loaded once.
func (s *Source) Load(path string, want int) (*Buffer, error) {
	if s.loaded {
		return nil, ErrAlreadyLoaded
	}
	s.loaded = true

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStimulusMissing, err)
	}
	defer f.Close()

	words, err := readWords(f, path, want)
	if err != nil {
		return nil, err
	}
	return NewBuffer(words), nil
}

func readWords(r io.Reader, path string, want int) ([]uint32, error) {
	if want < 0 {
		want = 0
	}
	words := make([]uint32, 0, want)

	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	for len(words) < want && sc.Scan() {
		tok := sc.Text()
		v, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: value %d %q: %w", path, len(words), tok, ErrStimulusMalformed)
		}
		words = append(words, uint32(v))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read stimulus %s: %w", path, err)
	}

	if len(words) < want {
		return nil, &ShortError{Path: path, Have: len(words), Want: want}
	}
	return words, nil
}

func digestWords(words []uint32) string {
	h := sha256.New()
	var b [4]byte
	for _, w := range words {
		binary.LittleEndian.PutUint32(b[:], w)
		h.Write(b[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
