package labels

import (
	"fmt"

	"github.com/janelia-flyem/trainlabels/volume"
)

type voxel struct {
	z, y, x int
}

// RecomputeSegmentation labels the connected components of an axis affinity
// graph.  aff has shape (3, z, y, x) where channel i holds the affinity along
// volume.AxisOffsets[i].  Voxels joined by any positive edge share an ID; IDs
// are 1, 2, ... in raster order of each component's first voxel.  Voxels with
// no positive edge in any direction are background (0).
func RecomputeSegmentation(aff *volume.Volume) (*volume.Volume, error) {
	if aff == nil || aff.Rank() != 4 || aff.Channels() != len(volume.AxisOffsets) {
		return nil, fmt.Errorf("expected (3,z,y,x) axis affinity, got %v: %w", shapeOf(aff), volume.ErrShape)
	}
	nz, ny, nx := aff.Spatial()
	n := nz * ny * nx
	extent := [3]int{nz, ny, nx}

	// edge reports whether the axis-a affinity at v links it to v+AxisOffsets[a].
	edge := func(a int, v voxel) bool {
		return aff.Data[a*n+(v.z*ny+v.y)*nx+v.x] > 0
	}
	inBounds := func(v voxel) bool {
		return v.z >= 0 && v.z < extent[0] && v.y >= 0 && v.y < extent[1] && v.x >= 0 && v.x < extent[2]
	}

	out := volume.New(1, nz, ny, nx)
	visited := make([]bool, n)
	var nextID float64 = 1
	var stack, members []voxel
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				start := (z*ny+y)*nx + x
				if visited[start] {
					continue
				}
				visited[start] = true
				stack = append(stack[:0], voxel{z, y, x})
				members = members[:0]
				for len(stack) > 0 {
					v := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					members = append(members, v)
					for a, d := range volume.AxisOffsets {
						fwd := voxel{v.z + d[0], v.y + d[1], v.x + d[2]}
						bwd := voxel{v.z - d[0], v.y - d[1], v.x - d[2]}
						if inBounds(fwd) && edge(a, v) {
							if i := (fwd.z*ny+fwd.y)*nx + fwd.x; !visited[i] {
								visited[i] = true
								stack = append(stack, fwd)
							}
						}
						if inBounds(bwd) && edge(a, bwd) {
							if i := (bwd.z*ny+bwd.y)*nx + bwd.x; !visited[i] {
								visited[i] = true
								stack = append(stack, bwd)
							}
						}
					}
				}
				if len(members) == 1 {
					continue // isolated voxel stays background
				}
				for _, v := range members {
					out.Data[(v.z*ny+v.y)*nx+v.x] = nextID
				}
				nextID++
			}
		}
	}
	return out, nil
}

// Recompute rebuilds a segmentation from its own axis affinity graph, yielding a
// normalized labeling in which every ID is one connected component.
func Recompute(seg *volume.Volume) (*volume.Volume, error) {
	affs := make([]*volume.Volume, len(volume.AxisOffsets))
	for i, d := range volume.AxisOffsets {
		a, err := Affinitize(seg, d)
		if err != nil {
			return nil, err
		}
		affs[i] = a
	}
	aff, err := volume.Stack(affs...)
	if err != nil {
		return nil, err
	}
	return RecomputeSegmentation(aff)
}

func shapeOf(v *volume.Volume) []int {
	if v == nil {
		return nil
	}
	return v.Shape
}
