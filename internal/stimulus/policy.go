package stimulus

import (
	"fmt"
	"strings"
)

// Policy selects how buffered words become input port words.
type Policy int

const (
	// FullWidth copies one buffered word into every input port word.
	FullWidth Policy = iota
	// Seed reads one word per cycle and derives port word i as seed+i.
	Seed
)

// ValidPolicies lists the accepted policy names.
var ValidPolicies = []string{"full", "seed"}

// String returns the configuration name of the policy.
func (p Policy) String() string {
	switch p {
	case FullWidth:
		return "full"
	case Seed:
		return "seed"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy converts a configuration name into a Policy.
// "full-width" is accepted as an alias of "full".
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "full", "full-width":
		return FullWidth, nil
	case "seed":
		return Seed, nil
	default:
		return 0, fmt.Errorf("unknown stimulus policy %q: must be one of %v", name, ValidPolicies)
	}
}

// WordsPerCycle returns how many buffered words one cycle consumes.
func (p Policy) WordsPerCycle(inputWords int) int {
	if p == Seed {
		return 1
	}
	return inputWords
}

// RequiredCount returns the exact number of words a run of simlen cycles
// consumes from the stimulus file.
func RequiredCount(p Policy, inputWords, simlen int) int {
	if simlen <= 0 {
		return 0
	}
	return simlen * p.WordsPerCycle(inputWords)
}
