package volume

import "fmt"

// Crop extracts the sub-box [offset, offset+size) of the last three axes.  Any
// leading channel axis is kept, so the result has the rank of the input.
func Crop(v *Volume, offset Offset, size [3]int) (*Volume, error) {
	cv, err := Check(v)
	if err != nil {
		return nil, err
	}
	nz, ny, nx := cv.Spatial()
	extent := [3]int{nz, ny, nx}
	for i := 0; i < 3; i++ {
		if offset[i] < 0 || size[i] <= 0 || offset[i]+size[i] > extent[i] {
			return nil, fmt.Errorf("crop %v size %v exceeds extent %v: %w", offset, size, v.Shape, ErrShape)
		}
	}

	nc := cv.Channels()
	out := New(nc, size[0], size[1], size[2])
	var dst int
	for c := 0; c < nc; c++ {
		for z := 0; z < size[0]; z++ {
			for y := 0; y < size[1]; y++ {
				src := cv.Index(c, z+offset[0], y+offset[1], offset[2])
				copy(out.Data[dst:dst+size[2]], cv.Data[src:src+size[2]])
				dst += size[2]
			}
		}
	}
	if len(v.Shape) == 3 {
		out.Shape = out.Shape[1:]
	}
	return out, nil
}
