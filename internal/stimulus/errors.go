package stimulus

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyLoaded is returned when a Source is asked to load twice.
	ErrAlreadyLoaded = errors.New("stimulus already loaded")

	// ErrStimulusMissing is returned when the stimulus file cannot be opened.
	ErrStimulusMissing = errors.New("stimulus file not readable")

	// ErrStimulusMalformed is returned for a token that is not an unsigned integer.
	ErrStimulusMalformed = errors.New("malformed stimulus value")

	// ErrStimulusShort is matched by ShortError via errors.Is.
	ErrStimulusShort = errors.New("stimulus file too short")
)

// ShortError reports a stimulus file with fewer values than the run needs.
type ShortError struct {
	Path string
	Have int
	Want int
}

func (e *ShortError) Error() string {
	return fmt.Sprintf("%s: %s: have %d values, need %d", e.Path, ErrStimulusShort, e.Have, e.Want)
}

// Is lets errors.Is(err, ErrStimulusShort) match.
func (e *ShortError) Is(target error) bool {
	return target == ErrStimulusShort
}
