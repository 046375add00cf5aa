/*
	Package volume provides the N-dimensional voxel container used for label data.
	Volumes are row-major with x varying fastest and use the axis order
	(channel, z, y, x) or (z, y, x) for single-channel data.
*/
package volume

import (
	"errors"
	"fmt"
	"math"
)

// ErrShape is returned when volume shapes are incompatible or an extent is exceeded.
var ErrShape = errors.New("shape error")

// Offset is a voxel displacement (dz, dy, dx).
type Offset [3]int

func (o Offset) String() string {
	return fmt.Sprintf("(%d,%d,%d)", o[0], o[1], o[2])
}

// AxisOffsets are the unit offsets along x, y and z in that order.  Channel i of
// an axis affinity volume holds the affinity along AxisOffsets[i].
var AxisOffsets = []Offset{{0, 0, 1}, {0, 1, 0}, {1, 0, 0}}

// Volume is a dense array of voxel values.  Segmentation IDs are stored as
// integral float64 values, which is exact for IDs up to 2^53.
type Volume struct {
	Shape []int
	Data  []float64
}

func numElements(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// checkExtents requires positive extents whose product fits in an int.
func checkExtents(shape []int) (int, error) {
	n := 1
	for _, s := range shape {
		if s <= 0 {
			return 0, fmt.Errorf("non-positive extent in shape %v: %w", shape, ErrShape)
		}
		if s > math.MaxInt/n {
			return 0, fmt.Errorf("shape %v has too many voxels: %w", shape, ErrShape)
		}
		n *= s
	}
	return n, nil
}

// New returns a zero-filled volume of the given shape.
func New(shape ...int) *Volume {
	return &Volume{
		Shape: append([]int(nil), shape...),
		Data:  make([]float64, numElements(shape)),
	}
}

// Filled returns a volume of the given shape with every voxel set to value.
func Filled(value float64, shape ...int) *Volume {
	v := New(shape...)
	if value != 0 {
		for i := range v.Data {
			v.Data[i] = value
		}
	}
	return v
}

// FromData wraps data with the given shape without copying.
func FromData(shape []int, data []float64) (*Volume, error) {
	n, err := checkExtents(shape)
	if err != nil {
		return nil, err
	}
	if n != len(data) {
		return nil, fmt.Errorf("shape %v needs %d values, got %d: %w", shape, n, len(data), ErrShape)
	}
	return &Volume{Shape: append([]int(nil), shape...), Data: data}, nil
}

func (v *Volume) String() string {
	return fmt.Sprintf("volume %v (%d voxels)", v.Shape, len(v.Data))
}

// Len returns the number of voxels.
func (v *Volume) Len() int {
	return len(v.Data)
}

// Rank returns the number of dimensions.
func (v *Volume) Rank() int {
	return len(v.Shape)
}

// Channels returns the leading channel extent of a 4-D volume or 1 otherwise.
func (v *Volume) Channels() int {
	if len(v.Shape) == 4 {
		return v.Shape[0]
	}
	return 1
}

// Spatial returns the (z, y, x) extent, i.e., the last three axes.
func (v *Volume) Spatial() (nz, ny, nx int) {
	r := len(v.Shape)
	if r < 3 {
		return 0, 0, 0
	}
	return v.Shape[r-3], v.Shape[r-2], v.Shape[r-1]
}

// SameShape returns true if both volumes have identical shapes.
func (v *Volume) SameShape(o *Volume) bool {
	if len(v.Shape) != len(o.Shape) {
		return false
	}
	for i := range v.Shape {
		if v.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (v *Volume) Clone() *Volume {
	return &Volume{
		Shape: append([]int(nil), v.Shape...),
		Data:  append([]float64(nil), v.Data...),
	}
}

// Index returns the data index of voxel (c, z, y, x) in a 4-D volume.
func (v *Volume) Index(c, z, y, x int) int {
	nz, ny, nx := v.Spatial()
	return ((c*nz+z)*ny+y)*nx + x
}

// At returns the value of voxel (c, z, y, x).  A 3-D volume is addressed with c = 0.
func (v *Volume) At(c, z, y, x int) float64 {
	return v.Data[v.Index(c, z, y, x)]
}

// Channel returns a copy of channel c as a (1, z, y, x) volume.
func (v *Volume) Channel(c int) (*Volume, error) {
	if c < 0 || c >= v.Channels() {
		return nil, fmt.Errorf("channel %d outside %v: %w", c, v.Shape, ErrShape)
	}
	nz, ny, nx := v.Spatial()
	n := nz * ny * nx
	out := New(1, nz, ny, nx)
	copy(out.Data, v.Data[c*n:(c+1)*n])
	return out, nil
}

// Check returns a 4-D (channel, z, y, x) view of a volume.  3-D volumes are
// promoted to a single channel and share data with the input.  Any other rank
// is an ErrShape.
func Check(v *Volume) (*Volume, error) {
	if v == nil {
		return nil, fmt.Errorf("nil volume: %w", ErrShape)
	}
	switch len(v.Shape) {
	case 3:
		return &Volume{Shape: []int{1, v.Shape[0], v.Shape[1], v.Shape[2]}, Data: v.Data}, nil
	case 4:
		return v, nil
	default:
		return nil, fmt.Errorf("expected 3-D or 4-D volume, got shape %v: %w", v.Shape, ErrShape)
	}
}

// Stack concatenates single-channel volumes of identical spatial extent into a
// (len(vs), z, y, x) volume.
func Stack(vs ...*Volume) (*Volume, error) {
	if len(vs) == 0 {
		return nil, fmt.Errorf("nothing to stack: %w", ErrShape)
	}
	first, err := Check(vs[0])
	if err != nil {
		return nil, err
	}
	nz, ny, nx := first.Spatial()
	n := nz * ny * nx
	out := New(len(vs), nz, ny, nx)
	for c, v := range vs {
		cv, err := Check(v)
		if err != nil {
			return nil, err
		}
		if cv.Channels() != 1 || cv.Len() != n {
			return nil, fmt.Errorf("can't stack %v with %v: %w", cv.Shape, first.Shape, ErrShape)
		}
		copy(out.Data[c*n:(c+1)*n], cv.Data)
	}
	return out, nil
}

// Mul returns the voxelwise product of a and b.  If b has a single channel and the
// same spatial extent as a, it is broadcast across a's channels.
func Mul(a, b *Volume) (*Volume, error) {
	if a.SameShape(b) {
		out := New(a.Shape...)
		for i := range a.Data {
			out.Data[i] = a.Data[i] * b.Data[i]
		}
		return out, nil
	}
	ca, err := Check(a)
	if err != nil {
		return nil, err
	}
	cb, err := Check(b)
	if err != nil {
		return nil, err
	}
	nz, ny, nx := ca.Spatial()
	bz, by, bx := cb.Spatial()
	if cb.Channels() != 1 || nz != bz || ny != by || nx != bx {
		return nil, fmt.Errorf("can't multiply %v by %v: %w", a.Shape, b.Shape, ErrShape)
	}
	n := nz * ny * nx
	out := New(ca.Shape...)
	for i := range out.Data {
		out.Data[i] = ca.Data[i] * cb.Data[i%n]
	}
	return out, nil
}

// Count returns the number of voxels for which pred is true.
func (v *Volume) Count(pred func(float64) bool) int {
	var n int
	for _, val := range v.Data {
		if pred(val) {
			n++
		}
	}
	return n
}

// Sum returns the sum of all voxel values.
func (v *Volume) Sum() float64 {
	var sum float64
	for _, val := range v.Data {
		sum += val
	}
	return sum
}
