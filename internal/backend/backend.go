package backend

import (
	"context"
	"image"

	"github.com/ekisa-team/swapface/internal/face"
)

// ProviderName identifies an inference provider.
type ProviderName string

const (
	// ProviderInsight talks to an insightface inference sidecar.
	ProviderInsight ProviderName = "insight"
)

// Locator finds faces in an image.
type Locator interface {
	// Detect returns faces in detection order.
	Detect(ctx context.Context, img *image.RGBA) ([]face.Face, error)

	// Close releases resources.
	Close() error
}

// Swapper replaces the identity of one face with another.
type Swapper interface {
	// Swap renders source's identity onto target within img. With pasteBack
	// the result is the full image, otherwise only the aligned crop.
	Swap(ctx context.Context, img *image.RGBA, target, source face.Face, pasteBack bool) (*image.RGBA, error)

	// Close releases resources.
	Close() error
}

// Provider builds engines. Implementations must be safe for concurrent use.
type Provider interface {
	// Name returns the provider identifier.
	Name() ProviderName

	// NewLocator prepares the face analysis engine.
	NewLocator(ctx context.Context) (Locator, error)

	// LoadSwapper loads the swapper model at path. A model the engine cannot
	// parse yields an error wrapping ErrModelRejected.
	LoadSwapper(ctx context.Context, path string) (Swapper, error)

	// Close stops anything the provider started.
	Close() error
}
