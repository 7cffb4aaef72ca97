package regress

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// DomainRun prefixes run fingerprints. The version suffix allows the
// fingerprint inputs to change without colliding with old golden entries.
const DomainRun = "rtlfuzz/run/v1"

// Identity is everything that determines a run's signature.
type Identity struct {
	Design         string
	Policy         string
	InputWidth     int
	OutputWidth    int
	SimLen         int
	StimulusDigest string
}

// Fingerprint returns the content-addressed identity of a run:
// SHA256(domain + 0x00 + canonical JSON of the identity).
//
// Two runs with the same fingerprint must produce the same signature.
func Fingerprint(id Identity) (string, error) {
	canonical, err := marshalCanonical(map[string]any{
		"design":          id.Design,
		"policy":          id.Policy,
		"input_width":     id.InputWidth,
		"output_width":    id.OutputWidth,
		"simlen":          id.SimLen,
		"stimulus_digest": id.StimulusDigest,
	})
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(DomainRun))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// marshalCanonical encodes a flat object of strings and ints with sorted
// keys, NFC-normalized strings and no HTML escaping.
func marshalCanonical(obj map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := canonicalString(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')

		switch v := obj[k].(type) {
		case string:
			vb, err := canonicalString(v)
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		case int:
			buf.WriteString(strconv.Itoa(v))
		default:
			return nil, fmt.Errorf("unsupported type for key %q: %T", k, v)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func canonicalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
