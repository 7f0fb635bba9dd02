// Package face holds detected-face types and the ordering used to address
// faces by index.
package face

import (
	"encoding/json"
	"fmt"
	"image"
	"slices"
)

// BoundingBox is an axis-aligned face box in image pixel coordinates.
type BoundingBox struct {
	Left   float32 `json:"left"`
	Top    float32 `json:"top"`
	Right  float32 `json:"right"`
	Bottom float32 `json:"bottom"`
}

// Width returns the box width.
func (b BoundingBox) Width() float32 { return b.Right - b.Left }

// Height returns the box height.
func (b BoundingBox) Height() float32 { return b.Bottom - b.Top }

// Rect returns the box rounded outward to integer pixels.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(int(b.Left), int(b.Top), int(b.Right+0.5), int(b.Bottom+0.5))
}

// Point is a landmark position.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Face is a single detection. Payload carries engine-specific data that the
// swapper needs back verbatim.
type Face struct {
	Box       BoundingBox     `json:"bbox"`
	Score     float32         `json:"score"`
	Landmarks []Point         `json:"landmarks,omitempty"`
	Embedding []float32       `json:"embedding,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// IndexError reports a 1-based face index outside the detected range.
type IndexError struct {
	Have      int
	Requested int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("The image includes only %d faces, however, you asked for face %d", e.Have, e.Requested)
}

// Order returns a copy of faces sorted left to right by the box's left edge.
// Faces sharing a left edge keep their detection order.
func Order(faces []Face) []Face {
	ordered := slices.Clone(faces)
	slices.SortStableFunc(ordered, func(a, b Face) int {
		switch {
		case a.Box.Left < b.Box.Left:
			return -1
		case a.Box.Left > b.Box.Left:
			return 1
		}
		return 0
	})

	return ordered
}

// Select returns the face at the 1-based index of an ordered slice.
func Select(ordered []Face, index int) (Face, error) {
	if index < 1 || index > len(ordered) {
		return Face{}, &IndexError{Have: len(ordered), Requested: index}
	}

	return ordered[index-1], nil
}
