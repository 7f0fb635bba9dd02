// Package service runs the face swap pipeline: fetch both images, find faces,
// pick the requested ones, swap and encode the result as PNG.
package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"log/slog"
	"runtime"
	"time"

	"github.com/valyala/bytebufferpool"
	"golang.org/x/sync/errgroup"

	"github.com/ekisa-team/swapface/internal/backend"
	"github.com/ekisa-team/swapface/internal/engine"
	"github.com/ekisa-team/swapface/internal/face"
	"github.com/ekisa-team/swapface/internal/model"
)

// SuccessMessage is reported with every successful swap.
const SuccessMessage = "Face swap completed successfully"

// Engines is the shared engine library.
type Engines interface {
	Acquire(ctx context.Context) (*engine.Lease, error)
	Repair(variants ...string) (map[string]model.RepairReport, error)
	Invalidate()
	Status() engine.Status
}

// ImageSource fetches and normalizes remote images.
type ImageSource interface {
	Fetch(ctx context.Context, url string) (*image.RGBA, error)
}

// Result is a completed swap.
type Result struct {
	ID          string
	PNG         []byte
	Width       int
	Height      int
	SourceFaces int
	TargetFaces int
	ModelPath   string
	Duration    time.Duration
}

// FaceSwap executes swap requests against shared engines.
type FaceSwap struct {
	engines Engines
	images  ImageSource
}

// NewFaceSwap creates the pipeline.
func NewFaceSwap(engines Engines, images ImageSource) *FaceSwap {
	return &FaceSwap{engines: engines, images: images}
}

// Engines returns the engine library the pipeline runs on.
func (s *FaceSwap) Engines() Engines {
	return s.engines
}

// frames holds the decoded images of one request.
type frames struct {
	source, target, output *image.RGBA
}

func (f *frames) release() {
	f.source, f.target, f.output = nil, nil, nil
}

// Execute runs req. Every returned error is an *Error.
func (s *FaceSwap) Execute(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	log := slog.With("request_id", req.ID)
	log.Info("Face swap started", "source_index", req.SourceIndex, "target_index", req.TargetIndex, "memory_mb", MemoryMB())

	lease, err := s.engines.Acquire(ctx)
	if err != nil {
		log.Error("Engines unavailable", "error", err)
		return nil, engineError(err)
	}
	defer func() { lease.Release() }()

	var fr frames
	defer fr.release()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		img, err := s.images.Fetch(gctx, req.SourceURL)
		if err != nil {
			return ingestFailed(req.SourceURL, err)
		}
		fr.source = img
		return nil
	})
	g.Go(func() error {
		img, err := s.images.Fetch(gctx, req.TargetURL)
		if err != nil {
			return ingestFailed(req.TargetURL, err)
		}
		fr.target = img
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Warn("Image ingest failed", "error", err)
		return nil, err
	}

	sourceFaces, err := detect(ctx, lease, fr.source)
	if err != nil {
		log.Error("Face analysis failed", "image", "source", "error", err)
		return nil, internal(err)
	}
	targetFaces, err := detect(ctx, lease, fr.target)
	if err != nil {
		log.Error("Face analysis failed", "image", "target", "error", err)
		return nil, internal(err)
	}

	src, err := pick(sourceFaces, req.SourceIndex)
	if err != nil {
		return nil, err
	}
	dst, err := pick(targetFaces, req.TargetIndex)
	if err != nil {
		return nil, err
	}
	log.Info("Faces selected", "source_faces", len(sourceFaces), "target_faces", len(targetFaces), "memory_mb", MemoryMB())

	fr.output, err = lease.Swapper().Swap(ctx, fr.target, dst, src, true)
	if errors.Is(err, backend.ErrModelRejected) {
		lease, fr.output, err = s.recoverSwapper(ctx, log, lease, fr.target, dst, src)
	}
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			return nil, se
		}
		log.Error("Swap failed", "error", err)
		return nil, internal(err)
	}

	encoded, err := encodePNG(fr.output)
	if err != nil {
		log.Error("Encoding failed", "error", err)
		return nil, internal(err)
	}

	res := &Result{
		ID:          req.ID,
		PNG:         encoded,
		Width:       fr.output.Bounds().Dx(),
		Height:      fr.output.Bounds().Dy(),
		SourceFaces: len(sourceFaces),
		TargetFaces: len(targetFaces),
		ModelPath:   lease.ModelPath(),
		Duration:    time.Since(start),
	}

	log.Info("Face swap completed", "bytes", len(encoded), "elapsed", res.Duration, "memory_mb", MemoryMB())
	return res, nil
}

// ExecuteBase64 runs req and returns the PNG as standard base64.
func (s *FaceSwap) ExecuteBase64(ctx context.Context, req Request) (string, *Result, error) {
	res, err := s.Execute(ctx, req)
	if err != nil {
		return "", nil, err
	}

	return base64.StdEncoding.EncodeToString(res.PNG), res, nil
}

// recoverSwapper repairs the swapper model after the engine rejected it mid-request,
// rebuilds the engines and retries the swap once.
func (s *FaceSwap) recoverSwapper(ctx context.Context, log *slog.Logger, lease *engine.Lease, img *image.RGBA, target, source face.Face) (*engine.Lease, *image.RGBA, error) {
	variant := lease.Variant()
	log.Warn("Swapper rejected its model, repairing", "variant", variant, "model_path", lease.ModelPath())

	lease.Release()
	if _, err := s.engines.Repair(variant); err != nil {
		log.Error("Model repair failed", "variant", variant, "error", err)
	}
	s.engines.Invalidate()

	next, err := s.engines.Acquire(ctx)
	if err != nil {
		return lease, nil, &Error{Kind: KindUpstreamModelCorrupt, Message: "Swap model is corrupt and could not be recovered", Err: err}
	}

	out, err := next.Swapper().Swap(ctx, img, target, source, true)
	if errors.Is(err, backend.ErrModelRejected) {
		return next, nil, &Error{Kind: KindUpstreamModelCorrupt, Message: "Swap model is corrupt and could not be recovered", Err: err}
	}

	return next, out, err
}

func detect(ctx context.Context, lease *engine.Lease, img *image.RGBA) ([]face.Face, error) {
	faces, err := lease.Locator().Detect(ctx, img)
	if err != nil {
		return nil, err
	}

	return face.Order(faces), nil
}

func pick(ordered []face.Face, index int) (face.Face, error) {
	f, err := face.Select(ordered, index)
	if err != nil {
		var ie *face.IndexError
		if errors.As(err, &ie) {
			return face.Face{}, indexOutOfRange(ie)
		}
		return face.Face{}, internal(err)
	}

	return f, nil
}

func encodePNG(img *image.RGBA) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := png.Encode(buf, img); err != nil {
		return nil, err
	}

	return bytes.Clone(buf.B), nil
}

// MemoryMB returns the heap currently in use, in MiB.
func MemoryMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return float64(m.HeapAlloc) / (1 << 20)
}
