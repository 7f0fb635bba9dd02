// Package backendtest provides an in-memory backend.Provider for tests.
package backendtest

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/ekisa-team/swapface/internal/backend"
	"github.com/ekisa-team/swapface/internal/face"
)

// Marker is the color Swap paints over the target face.
var Marker = color.RGBA{R: 255, G: 0, B: 255, A: 255}

// Provider is a deterministic fake. Detect reports FacesPerImage faces laid
// out across the image width, listed right to left.
type Provider struct {
	FacesPerImage int

	// Gate, when non-nil, blocks NewLocator until closed.
	Gate chan struct{}

	mu         sync.Mutex
	locatorErr error
	loadErr    func(path string) error
	swapErr    error
	loads      map[string]int

	locators atomic.Int32
	detects  atomic.Int32
	swaps    atomic.Int32
	closed   atomic.Int32
}

// New returns a provider that finds n faces per image.
func New(n int) *Provider {
	return &Provider{FacesPerImage: n, loads: map[string]int{}}
}

// FailLocator makes NewLocator fail with err until cleared with nil.
func (p *Provider) FailLocator(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locatorErr = err
}

// FailLoad makes LoadSwapper return fn(path) when non-nil.
func (p *Provider) FailLoad(fn func(path string) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadErr = fn
}

// FailSwap makes Swap fail with err until cleared with nil.
func (p *Provider) FailSwap(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.swapErr = err
}

// Name implements backend.Provider.
func (p *Provider) Name() backend.ProviderName { return "fake" }

// NewLocator implements backend.Provider.
func (p *Provider) NewLocator(ctx context.Context) (backend.Locator, error) {
	p.locators.Add(1)
	if p.Gate != nil {
		<-p.Gate
	}

	p.mu.Lock()
	err := p.locatorErr
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return &locator{p: p}, nil
}

// LoadSwapper implements backend.Provider.
func (p *Provider) LoadSwapper(ctx context.Context, path string) (backend.Swapper, error) {
	p.mu.Lock()
	p.loads[path]++
	fn := p.loadErr
	p.mu.Unlock()

	if fn != nil {
		if err := fn(path); err != nil {
			return nil, err
		}
	}

	return &swapper{p: p, path: path}, nil
}

// Close implements backend.Provider.
func (p *Provider) Close() error { return nil }

// LocatorCalls returns how many times NewLocator ran.
func (p *Provider) LocatorCalls() int { return int(p.locators.Load()) }

// DetectCalls returns how many images were analyzed.
func (p *Provider) DetectCalls() int { return int(p.detects.Load()) }

// SwapCalls returns how many swaps ran.
func (p *Provider) SwapCalls() int { return int(p.swaps.Load()) }

// Closed returns how many engines were closed.
func (p *Provider) Closed() int { return int(p.closed.Load()) }

// Loads returns how many times path was loaded.
func (p *Provider) Loads(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loads[path]
}

// EngineCalls is the total number of engine invocations of any kind.
func (p *Provider) EngineCalls() int {
	return p.LocatorCalls() + p.DetectCalls() + p.SwapCalls()
}

type locator struct {
	p *Provider
}

func (l *locator) Detect(_ context.Context, img *image.RGBA) ([]face.Face, error) {
	l.p.detects.Add(1)

	n := l.p.FacesPerImage
	b := img.Bounds()
	slot := float32(b.Dx()) / float32(max(n, 1))

	faces := make([]face.Face, 0, n)
	for i := n - 1; i >= 0; i-- {
		left := float32(b.Min.X) + slot*float32(i)
		faces = append(faces, face.Face{
			Box:   face.BoundingBox{Left: left, Top: float32(b.Min.Y), Right: left + slot/2, Bottom: float32(b.Min.Y) + float32(b.Dy())/2},
			Score: 0.5 + float32(i)/100,
		})
	}

	return faces, nil
}

func (l *locator) Close() error {
	l.p.closed.Add(1)
	return nil
}

type swapper struct {
	p    *Provider
	path string
}

func (s *swapper) Swap(_ context.Context, img *image.RGBA, target, _ face.Face, pasteBack bool) (*image.RGBA, error) {
	s.p.swaps.Add(1)

	s.p.mu.Lock()
	err := s.p.swapErr
	s.p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := image.NewRGBA(img.Bounds())
	copy(out.Pix, img.Pix)

	r := target.Box.Rect().Intersect(out.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			out.SetRGBA(x, y, Marker)
		}
	}

	return out, nil
}

func (s *swapper) Close() error {
	s.p.closed.Add(1)
	return nil
}
