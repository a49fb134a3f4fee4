// Package image defines the Provider interface for illustration backends.
//
// An image provider turns a short descriptive prompt into one encoded picture.
// Images are decorative in Lectern: callers treat failures as "no image" and
// carry on.
package image

import (
	"context"
	"errors"

	"github.com/MrWong99/lectern/pkg/types"
)

// ErrNoImage is returned when a backend answers without image data, for
// example because the prompt was filtered.
var ErrNoImage = errors.New("image: response contained no image")

// Provider is the abstraction over any image generation backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Generate renders prompt and returns the encoded image.
	Generate(ctx context.Context, prompt string) (types.Image, error)
}
