package face

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func facesAt(lefts ...float32) []Face {
	faces := make([]Face, len(lefts))
	for i, l := range lefts {
		faces[i] = Face{Box: BoundingBox{Left: l, Top: 0, Right: l + 10, Bottom: 10}, Score: float32(i)}
	}
	return faces
}

func TestOrder(t *testing.T) {
	in := facesAt(300, 10, 150)
	out := Order(in)

	assert.Equal(t, []float32{10, 150, 300}, []float32{out[0].Box.Left, out[1].Box.Left, out[2].Box.Left})
	// input untouched
	assert.Equal(t, float32(300), in[0].Box.Left)
}

func TestOrder_StableOnTies(t *testing.T) {
	out := Order(facesAt(50, 20, 50, 20))

	// score records detection position
	assert.Equal(t, []float32{1, 3, 0, 2}, []float32{out[0].Score, out[1].Score, out[2].Score, out[3].Score})
}

func TestOrder_Idempotent(t *testing.T) {
	once := Order(facesAt(7, 3, 3, 9, 1))
	assert.Equal(t, once, Order(once))
}

func TestOrder_Empty(t *testing.T) {
	assert.Empty(t, Order(nil))
}

func TestSelect(t *testing.T) {
	ordered := Order(facesAt(300, 10, 150))

	for i := -1; i <= len(ordered)+2; i++ {
		f, err := Select(ordered, i)
		if i >= 1 && i <= len(ordered) {
			require.NoError(t, err, "index %d", i)
			assert.Equal(t, ordered[i-1], f)
			continue
		}

		var idxErr *IndexError
		require.True(t, errors.As(err, &idxErr), "index %d", i)
		assert.Equal(t, len(ordered), idxErr.Have)
		assert.Equal(t, i, idxErr.Requested)
	}
}

func TestSelect_OutOfRangeMessage(t *testing.T) {
	_, err := Select(facesAt(1, 2, 3), 5)
	assert.EqualError(t, err, "The image includes only 3 faces, however, you asked for face 5")
}

func TestBoundingBox(t *testing.T) {
	b := BoundingBox{Left: 10, Top: 20, Right: 40.6, Bottom: 60}
	assert.InDelta(t, 30.6, b.Width(), 1e-4)
	assert.InDelta(t, 40, b.Height(), 1e-4)
	assert.Equal(t, 10, b.Rect().Min.X)
	assert.Equal(t, 41, b.Rect().Max.X)
}
