package labels

import (
	"fmt"

	"github.com/janelia-flyem/trainlabels/volume"
)

// MulticlassExpansion returns one channel per ID marking the voxels equal to that
// ID, and a mask of the same shape that excludes unlabeled (0) voxels in every
// channel.
func MulticlassExpansion(vol *volume.Volume, ids []uint64) (lbl, msk *volume.Volume, err error) {
	if len(ids) == 0 {
		return nil, nil, fmt.Errorf("multiclass expansion needs at least one id: %w", volume.ErrShape)
	}
	src, err := spatialSource(vol)
	if err != nil {
		return nil, nil, err
	}
	nz, ny, nx := src.Spatial()
	n := nz * ny * nx
	lbl = volume.New(len(ids), nz, ny, nx)
	msk = volume.New(len(ids), nz, ny, nx)
	for c, id := range ids {
		target := float64(id)
		for i, val := range src.Data {
			if val == target {
				lbl.Data[c*n+i] = 1
			}
			if val != 0 {
				msk.Data[c*n+i] = 1
			}
		}
	}
	return lbl, msk, nil
}

// Binarize returns 1 where the volume is nonzero and 0 elsewhere.
func Binarize(vol *volume.Volume) (*volume.Volume, error) {
	src, err := volume.Check(vol)
	if err != nil {
		return nil, err
	}
	out := volume.New(src.Shape...)
	for i, val := range src.Data {
		if val != 0 {
			out.Data[i] = 1
		}
	}
	return out, nil
}

// CenterID returns the value at the spatial center (0, z/2, y/2, x/2).
func CenterID(vol *volume.Volume) (uint64, error) {
	src, err := volume.Check(vol)
	if err != nil {
		return 0, err
	}
	nz, ny, nx := src.Spatial()
	val := src.At(0, nz/2, ny/2, nx/2)
	if val < 0 {
		return 0, fmt.Errorf("negative segment id %g at center of %v: %w", val, vol.Shape, volume.ErrShape)
	}
	return uint64(val), nil
}

// BinarizeObject returns 1 where the volume equals the object ID and 0 elsewhere.
// A nil id selects the object at the volume's center voxel.
func BinarizeObject(vol *volume.Volume, id *uint64) (*volume.Volume, error) {
	src, err := volume.Check(vol)
	if err != nil {
		return nil, err
	}
	var target uint64
	if id != nil {
		target = *id
	} else if target, err = CenterID(src); err != nil {
		return nil, err
	}
	t := float64(target)
	out := volume.New(src.Shape...)
	for i, val := range src.Data {
		if val == t {
			out.Data[i] = 1
		}
	}
	return out, nil
}

// CenterMask returns a zero volume shaped like vol with a single 1 at the spatial
// center of every channel.
func CenterMask(vol *volume.Volume) (*volume.Volume, error) {
	src, err := volume.Check(vol)
	if err != nil {
		return nil, err
	}
	out := volume.New(src.Shape...)
	nz, ny, nx := src.Spatial()
	for c := 0; c < src.Channels(); c++ {
		out.Data[out.Index(c, nz/2, ny/2, nx/2)] = 1
	}
	return out, nil
}
