package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ekisa-team/swapface/internal/backend"
)

const retiredBit = int64(1) << 62

// bundle is one initialized locator and swapper pair. refs counts live
// leases; retiredBit is set once the bundle must not hand out new leases.
type bundle struct {
	locator   backend.Locator
	swapper   backend.Swapper
	variant   string
	modelPath string
	loadedAt  time.Time

	refs      atomic.Int64
	closeOnce sync.Once
}

func (b *bundle) acquire() bool {
	for {
		r := b.refs.Load()
		if r&retiredBit != 0 {
			return false
		}
		if b.refs.CompareAndSwap(r, r+1) {
			return true
		}
	}
}

func (b *bundle) release() {
	if b.refs.Add(-1) == retiredBit {
		b.close()
	}
}

// retire stops new leases and closes the engines once the last lease ends.
func (b *bundle) retire() {
	for {
		r := b.refs.Load()
		if r&retiredBit != 0 {
			return
		}
		if b.refs.CompareAndSwap(r, r|retiredBit) {
			if r == 0 {
				b.close()
			}
			return
		}
	}
}

func (b *bundle) close() {
	b.closeOnce.Do(func() {
		if err := b.swapper.Close(); err != nil {
			slog.Warn("Failed to close swapper", "variant", b.variant, "error", err)
		}
		if err := b.locator.Close(); err != nil {
			slog.Warn("Failed to close locator", "error", err)
		}
		slog.Info("Engines released", "variant", b.variant, "model_path", b.modelPath)
	})
}

// Lease grants use of the engines until Release. The engines stay open while
// any lease is held, even across Invalidate.
type Lease struct {
	b    *bundle
	once sync.Once
}

// Locator returns the face locator.
func (l *Lease) Locator() backend.Locator { return l.b.locator }

// Swapper returns the face swapper.
func (l *Lease) Swapper() backend.Swapper { return l.b.swapper }

// ModelPath returns the swapper model file in use.
func (l *Lease) ModelPath() string { return l.b.modelPath }

// Variant returns the swapper variant in use.
func (l *Lease) Variant() string { return l.b.variant }

// Release ends the lease. Extra calls are ignored.
func (l *Lease) Release() {
	l.once.Do(l.b.release)
}
