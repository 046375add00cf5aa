/*
	Package labels holds the voxel kernels that turn segmentations into training
	labels: affinity graphs along offsets, connected-component recomputation, and
	binary or multiclass expansions.  All functions are pure and allocate their
	results, so they may be called concurrently on independent volumes.
*/
package labels

import (
	"fmt"

	"github.com/janelia-flyem/trainlabels/volume"
)

// spatialSource promotes v to (1,z,y,x) and rejects multi-channel volumes.
func spatialSource(v *volume.Volume) (*volume.Volume, error) {
	cv, err := volume.Check(v)
	if err != nil {
		return nil, err
	}
	if cv.Channels() != 1 {
		return nil, fmt.Errorf("expected single-channel volume, got %v: %w", v.Shape, volume.ErrShape)
	}
	return cv, nil
}

// pairwise sets out[v] = 1 for every in-bounds pair (v, v+d) where connected is true.
func pairwise(src *volume.Volume, d volume.Offset, connected func(a, b float64) bool) *volume.Volume {
	nz, ny, nx := src.Spatial()
	out := volume.New(1, nz, ny, nx)
	for z := 0; z < nz; z++ {
		z2 := z + d[0]
		if z2 < 0 || z2 >= nz {
			continue
		}
		for y := 0; y < ny; y++ {
			y2 := y + d[1]
			if y2 < 0 || y2 >= ny {
				continue
			}
			for x := 0; x < nx; x++ {
				x2 := x + d[2]
				if x2 < 0 || x2 >= nx {
					continue
				}
				i := (z*ny+y)*nx + x
				j := (z2*ny+y2)*nx + x2
				if connected(src.Data[i], src.Data[j]) {
					out.Data[i] = 1
				}
			}
		}
	}
	return out
}

// Affinitize returns the affinity of a segmentation along offset d: voxel v is 1
// iff v+d is in-bounds and both voxels carry the same nonzero ID.  The result
// has shape (1, z, y, x).
func Affinitize(seg *volume.Volume, d volume.Offset) (*volume.Volume, error) {
	src, err := spatialSource(seg)
	if err != nil {
		return nil, err
	}
	return pairwise(src, d, func(a, b float64) bool {
		return a != 0 && a == b
	}), nil
}

// AffinitizeMask propagates a validity mask along offset d: voxel v is 1 iff v+d
// is in-bounds and both mask values are positive.
func AffinitizeMask(msk *volume.Volume, d volume.Offset) (*volume.Volume, error) {
	src, err := spatialSource(msk)
	if err != nil {
		return nil, err
	}
	return pairwise(src, d, func(a, b float64) bool {
		return a > 0 && b > 0
	}), nil
}

// AffinityStack affinitizes a segmentation and propagates its mask along each
// offset, returning (len(dst), z, y, x) label and mask volumes.
func AffinityStack(seg, msk *volume.Volume, dst []volume.Offset) (lbl, lmsk *volume.Volume, err error) {
	if len(dst) == 0 {
		return nil, nil, fmt.Errorf("no affinity offsets: %w", volume.ErrShape)
	}
	affs := make([]*volume.Volume, len(dst))
	msks := make([]*volume.Volume, len(dst))
	for i, d := range dst {
		if affs[i], err = Affinitize(seg, d); err != nil {
			return nil, nil, err
		}
		if msks[i], err = AffinitizeMask(msk, d); err != nil {
			return nil, nil, err
		}
	}
	if lbl, err = volume.Stack(affs...); err != nil {
		return nil, nil, err
	}
	if lmsk, err = volume.Stack(msks...); err != nil {
		return nil, nil, err
	}
	return lbl, lmsk, nil
}
