// ABOUTME: GenerationError reports a text-generation backend failure
// ABOUTME: Callers recover locally with a fallback or an empty reply
package llm

import (
	"errors"
	"fmt"
)

// GenerationError wraps any failure to produce text
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation: %s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IsGenerationError reports whether err wraps a GenerationError
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

// errEmpty is returned when a backend answers with no usable text
var errEmpty = errors.New("empty response")
