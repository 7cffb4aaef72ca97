package sim

import (
	"fmt"
	"io"
)

// Signature is a 64-bit checksum of output words. Addition wraps.
type Signature uint64

// Add folds one output word into the signature.
func (s Signature) Add(w uint32) Signature {
	return s + Signature(w)
}

// Report prints the completion summary for res.
func Report(w io.Writer, res Result) error {
	_, err := fmt.Fprintf(w, "Testbench complete!\nOutput signature: %d.\nElapsed time: %d.\n",
		uint64(res.Signature), res.Milliseconds())
	return err
}
