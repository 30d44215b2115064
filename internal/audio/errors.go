package audio

import (
	"errors"
	"fmt"
	"strings"
)

// ErrExhaustedCandidates matches any ExhaustedCandidatesError via errors.Is
var ErrExhaustedCandidates = errors.New("all candidates failed")

// FetchError is a transport-level failure retrieving one candidate
type FetchError struct {
	Path string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Path, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// DecodeError means the fetched bytes are not playable audio
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ExhaustedCandidatesError is the terminal failure of a request.
// Last is the error of the final candidate attempted, nil when the
// resolver produced no candidates at all.
type ExhaustedCandidatesError struct {
	Name       string
	Candidates []string
	Last       error
}

func (e *ExhaustedCandidatesError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("sound %q: no candidates", e.Name)
	}
	return fmt.Sprintf("sound %q: %d candidate(s) failed [%s]: last error: %v",
		e.Name, len(e.Candidates), strings.Join(e.Candidates, ", "), e.Last)
}

func (e *ExhaustedCandidatesError) Unwrap() error {
	return e.Last
}

func (e *ExhaustedCandidatesError) Is(target error) bool {
	return target == ErrExhaustedCandidates
}
