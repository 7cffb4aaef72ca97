// Package stimulus loads pre-generated random input words and applies them to
// a module's input port, one cycle at a time.
//
// A run reads its stimulus file exactly once. The number of words it needs is
// fixed by the stimulus policy, the input port width and the cycle count:
//
//	full-width: simlen * ceil(inputBits/32) words, one per port word per cycle
//	seed:       simlen words, one seed per cycle; port word i gets seed+i
//
// The policy is chosen once when the Feeder is built. Short or malformed files
// are rejected at load time, before any cycle runs.
package stimulus
