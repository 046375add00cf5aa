package transform

import (
	"errors"
	"testing"

	"github.com/janelia-flyem/trainlabels/sample"
	"github.com/janelia-flyem/trainlabels/volume"
)

// slabSample holds a 4x4x4 segmentation "label" with ID 1 in z=0,1 and ID 2 in z=2,3.
func slabSample(t *testing.T) *sample.Sample {
	seg := volume.New(4, 4, 4)
	for i := range seg.Data {
		if i < 32 {
			seg.Data[i] = 1
		} else {
			seg.Data[i] = 2
		}
	}
	s := sample.New("slabs")
	if err := s.Set("label", seg); err != nil {
		t.Fatalf("set label: %v\n", err)
	}
	return s
}

func axisAffinity(t *testing.T, crop *volume.Offset, size *[3]int) *Affinity {
	aff, err := NewAffinity(AffinityConfig{
		Dst:       volume.AxisOffsets,
		Source:    "label",
		Target:    "affinity",
		Crop:      crop,
		CropSize:  size,
		Recompute: true,
	})
	if err != nil {
		t.Fatalf("new affinity: %v\n", err)
	}
	return aff
}

func TestAffinitySlabs(t *testing.T) {
	s, err := axisAffinity(t, nil, nil).Apply(slabSample(t), Params{})
	if err != nil {
		t.Fatalf("apply: %v\n", err)
	}
	lbl, found := s.Get("affinity")
	if !found {
		t.Fatalf("no affinity written")
	}
	msk, found := s.Get("affinity_mask")
	if !found || !msk.SameShape(lbl) {
		t.Fatalf("expected affinity mask of shape %v\n", lbl.Shape)
	}
	if !lbl.SameShape(volume.New(3, 4, 4, 4)) {
		t.Fatalf("expected (3,4,4,4) affinity, got %v\n", lbl.Shape)
	}
	for z := 0; z < 4; z++ {
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				want := [3]float64{}
				if x < 3 {
					want[0] = 1
				}
				if y < 3 {
					want[1] = 1
				}
				if z == 0 || z == 2 { // z=1 faces the ID 1/2 boundary, z=3 the outer face
					want[2] = 1
				}
				for c := 0; c < 3; c++ {
					if got := lbl.At(c, z, y, x); got != want[c] {
						t.Errorf("channel %d at (%d,%d,%d) = %f, expected %f\n", c, z, y, x, got, want[c])
					}
					if got := msk.At(c, z, y, x); got != want[c] && want[c] == 1 {
						t.Errorf("mask channel %d at (%d,%d,%d) = %f, expected valid\n", c, z, y, x, got)
					}
				}
			}
		}
	}
}

func TestAffinityCrop(t *testing.T) {
	full, err := axisAffinity(t, nil, nil).Apply(slabSample(t), Params{})
	if err != nil {
		t.Fatalf("apply uncropped: %v\n", err)
	}
	offset := volume.Offset{1, 1, 1}
	size := [3]int{2, 2, 2}
	cropped, err := axisAffinity(t, &offset, &size).Apply(slabSample(t), Params{})
	if err != nil {
		t.Fatalf("apply cropped: %v\n", err)
	}
	if cropped.Len() != full.Len() {
		t.Fatalf("expected %d entries, got %d\n", full.Len(), cropped.Len())
	}
	for _, k := range full.Keys() {
		fv, _ := full.Get(k)
		cv, found := cropped.Get(k)
		if !found {
			t.Fatalf("cropped sample lacks %q\n", k)
		}
		fc, _ := volume.Check(fv)
		cc, _ := volume.Check(cv)
		if cv.Rank() != fv.Rank() || cc.Channels() != fc.Channels() {
			t.Fatalf("%q: rank or channels changed from %v to %v\n", k, fv.Shape, cv.Shape)
		}
		nz, ny, nx := cc.Spatial()
		if nz != 2 || ny != 2 || nx != 2 {
			t.Errorf("%q: expected spatial (2,2,2), got %v\n", k, cv.Shape)
		}
		for c := 0; c < cc.Channels(); c++ {
			for z := 0; z < 2; z++ {
				for y := 0; y < 2; y++ {
					for x := 0; x < 2; x++ {
						if got, want := cc.At(c, z, y, x), fc.At(c, z+1, y+1, x+1); got != want {
							t.Errorf("%q at (%d,%d,%d,%d) = %f, expected %f\n", k, c, z, y, x, got, want)
						}
					}
				}
			}
		}
	}
}

func TestAffinityCropAllOrNothing(t *testing.T) {
	s := slabSample(t)
	if err := s.Set("small", volume.New(2, 2, 2)); err != nil {
		t.Fatalf("set: %v\n", err)
	}
	offset := volume.Offset{1, 1, 1}
	size := [3]int{2, 2, 2}
	_, err := axisAffinity(t, &offset, &size).Apply(s, Params{})
	if !errors.Is(err, volume.ErrShape) {
		t.Fatalf("expected ErrShape, got %v\n", err)
	}
	if s.Has("affinity") || s.Has("affinity_mask") {
		t.Errorf("failed crop should not write the affinity target")
	}
	label, _ := s.Get("label")
	if label.Len() != 64 {
		t.Errorf("failed crop should leave label uncropped, got %v\n", label.Shape)
	}
}

func TestAffinityMaskAndRebalance(t *testing.T) {
	s := slabSample(t)
	msk := volume.Filled(1, 4, 4, 4)
	msk.Data[0] = 0 // voxel (0,0,0) has no ground truth
	s.Set("label_mask", msk)

	baseW := 0.0
	aff, err := NewAffinity(AffinityConfig{
		Dst:    []volume.Offset{{1, 0, 0}, {0, 0, 1}},
		Source: "label",
		Target: "aff",
		BaseW:  &baseW,
	})
	if err != nil {
		t.Fatalf("new affinity: %v\n", err)
	}
	if _, err := aff.Apply(s, Params{}); err != nil {
		t.Fatalf("apply: %v\n", err)
	}
	lbl, _ := s.Get("aff")
	w, _ := s.Get("aff_mask")
	if lbl.Channels() != 2 {
		t.Fatalf("expected 2 channels, got %v\n", lbl.Shape)
	}
	if w.At(0, 0, 0, 0) != 0 || w.At(1, 0, 0, 0) != 0 {
		t.Errorf("edges from an invalid voxel must have zero weight")
	}

	// z edges cross the ID boundary at z=1, so both classes are present.
	lz, _ := lbl.Channel(0)
	wz, _ := w.Channel(0)
	var neg, pos float64
	for i := range wz.Data {
		if lz.Data[i] > 0 {
			pos += wz.Data[i]
		} else {
			neg += wz.Data[i]
		}
	}
	if diff := neg - pos; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("z channel not rebalanced: %f vs %f\n", neg, pos)
	}

	// Every valid x edge is positive, so that channel keeps its propagated mask.
	for x := 0; x < 4; x++ {
		want := 1.0
		if x == 3 {
			want = 0
		}
		if got := w.At(1, 2, 2, x); got != want {
			t.Errorf("x channel weight at x=%d = %f, expected %f\n", x, got, want)
		}
	}
}

func TestAffinityMismatchedMask(t *testing.T) {
	// Equal voxel counts but different extents.  Commit doesn't validate, so the
	// transform must catch it rather than emit a misaligned affinity mask.
	s := slabSample(t)
	s.Commit(map[string]*volume.Volume{"label_mask": volume.Filled(1, 1, 2, 8, 4)})
	if _, err := axisAffinity(t, nil, nil).Apply(s, Params{}); !errors.Is(err, volume.ErrShape) {
		t.Fatalf("expected ErrShape for mismatched label mask, got %v\n", err)
	}
	if s.Has("affinity") || s.Has("affinity_mask") {
		t.Errorf("failed affinity should not write its target\n")
	}
}
