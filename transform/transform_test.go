package transform

import (
	"errors"
	"math"
	"testing"

	"github.com/janelia-flyem/trainlabels/sample"
	"github.com/janelia-flyem/trainlabels/volume"
)

// pattern returns a 3x4x5 volume whose values cycle through 0..n-1.
func pattern(n int) *volume.Volume {
	v := volume.New(3, 4, 5)
	for i := range v.Data {
		v.Data[i] = float64(i % n)
	}
	return v
}

func newSample(t *testing.T, entries map[string]*volume.Volume) *sample.Sample {
	s := sample.New("")
	for k, v := range entries {
		if err := s.Set(k, v); err != nil {
			t.Fatalf("set %q: %v\n", k, err)
		}
	}
	return s
}

func balanced(lbl, w *volume.Volume) bool {
	var neg, pos float64
	for i := range w.Data {
		if lbl.Data[i] > 0 {
			pos += w.Data[i]
		} else {
			neg += w.Data[i]
		}
	}
	return math.Abs(neg-pos) < 1e-9
}

func TestBoundary(t *testing.T) {
	src := pattern(4)
	s := newSample(t, map[string]*volume.Volume{"boundary": src})
	b, err := NewBoundary("boundary", "bdr", false)
	if err != nil {
		t.Fatalf("new boundary: %v\n", err)
	}
	if _, err := b.Apply(s, Params{}); err != nil {
		t.Fatalf("apply: %v\n", err)
	}
	lbl, _ := s.Get("bdr")
	msk, _ := s.Get("bdr_mask")
	if !lbl.SameShape(volume.New(1, 3, 4, 5)) || !msk.SameShape(lbl) {
		t.Fatalf("expected (1,3,4,5) label and mask, got %v %v\n", lbl.Shape, msk.Shape)
	}
	for i, v := range src.Data {
		if want := boolValue(v == 0); lbl.Data[i] != want {
			t.Fatalf("voxel %d with value %f labeled %f\n", i, v, lbl.Data[i])
		}
	}
	if msk.Sum() != float64(msk.Len()) {
		t.Errorf("without rebalancing the default mask should stay all ones")
	}

	rb, _ := NewBoundary("boundary", "bdr", true)
	if _, err := rb.Apply(s, Params{}); err != nil {
		t.Fatalf("apply rebalanced: %v\n", err)
	}
	lbl, _ = s.Get("bdr")
	w, _ := s.Get("bdr_mask")
	if !balanced(lbl, w) {
		t.Errorf("boundary weights not balanced")
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func TestSegmentationIdempotent(t *testing.T) {
	// Runs of four voxels along x, cycling through IDs 0, 1, 2.
	runs := volume.New(3, 4, 5)
	for i := range runs.Data {
		runs.Data[i] = float64((i / 4) % 3)
	}
	s := newSample(t, map[string]*volume.Volume{"seg": runs})
	seg, err := NewSegmentation("seg", "seg", true)
	if err != nil {
		t.Fatalf("new segmentation: %v\n", err)
	}
	if _, err := seg.Apply(s, Params{}); err != nil {
		t.Fatalf("apply: %v\n", err)
	}
	once, _ := s.Get("seg")
	if once.Rank() != 4 {
		t.Errorf("expected 4-D segmentation, got %v\n", once.Shape)
	}
	if once.Sum() == 0 {
		t.Fatalf("recompute found no components")
	}
	if _, err := seg.Apply(s, Params{}); err != nil {
		t.Fatalf("apply twice: %v\n", err)
	}
	twice, _ := s.Get("seg")
	for i := range once.Data {
		if once.Data[i] != twice.Data[i] {
			t.Fatalf("second recompute changed voxel %d: %f -> %f\n", i, once.Data[i], twice.Data[i])
		}
	}

	plain, _ := NewSegmentation("seg", "copy", false)
	if _, err := plain.Apply(s, Params{}); err != nil {
		t.Fatalf("apply without recompute: %v\n", err)
	}
	cp, _ := s.Get("copy")
	if cp.Sum() != twice.Sum() || !s.Has("copy_mask") {
		t.Errorf("segmentation without recompute should copy the source")
	}
}

func TestSemantic(t *testing.T) {
	src := pattern(4)
	msk := volume.Filled(1, 3, 4, 5)
	msk.Data[1] = 0 // a class-1 voxel without ground truth
	s := newSample(t, map[string]*volume.Volume{"sem": src, "sem_mask": msk})
	sem, err := NewSemantic([]uint64{1, 2}, "sem", "classes", true)
	if err != nil {
		t.Fatalf("new semantic: %v\n", err)
	}
	if _, err := sem.Apply(s, Params{}); err != nil {
		t.Fatalf("apply: %v\n", err)
	}
	lbl, _ := s.Get("classes")
	w, _ := s.Get("classes_mask")
	if lbl.Channels() != 2 || !w.SameShape(lbl) {
		t.Fatalf("expected two channels, got %v and %v\n", lbl.Shape, w.Shape)
	}
	n := src.Len()
	for c := 0; c < 2; c++ {
		if w.Data[c*n+1] != 0 {
			t.Errorf("channel %d: masked voxel has weight %f\n", c, w.Data[c*n+1])
		}
		lc, _ := lbl.Channel(c)
		wc, _ := w.Channel(c)
		if !balanced(lc, wc) {
			t.Errorf("channel %d not balanced\n", c)
		}
		for i, v := range src.Data {
			if v == 0 && wc.Data[i] != 0 {
				t.Fatalf("channel %d: unlabeled voxel %d has weight %f\n", c, i, wc.Data[i])
			}
		}
	}

	if _, err := NewSemantic(nil, "sem", "classes", true); !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig for empty ids, got %v\n", err)
	}
	if _, err := NewSemantic([]uint64{1, 1}, "sem", "classes", true); !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig for repeated ids, got %v\n", err)
	}
}

func TestSynapse(t *testing.T) {
	src := volume.New(3, 4, 5)
	src.Data[7] = 12
	src.Data[8] = 13
	s := newSample(t, map[string]*volume.Volume{"syn": src})
	syn, err := NewSynapse("syn", "synapse", true, 0.5)
	if err != nil {
		t.Fatalf("new synapse: %v\n", err)
	}
	if _, err := syn.Apply(s, Params{}); err != nil {
		t.Fatalf("apply: %v\n", err)
	}
	lbl, _ := s.Get("synapse")
	w, _ := s.Get("synapse_mask")
	if lbl.Sum() != 2 {
		t.Errorf("expected 2 synapse voxels, got %f\n", lbl.Sum())
	}
	// 2 of 60 positive: w1 = 15, w0 = max(60/116, 0.5*15).
	if math.Abs(w.Data[7]-15) > 1e-9 || math.Abs(w.Data[0]-7.5) > 1e-9 {
		t.Errorf("unexpected weights %f (pos) and %f (neg)\n", w.Data[7], w.Data[0])
	}
	if _, err := NewSynapse("syn", "synapse", true, 1); !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig for base_w 1, got %v\n", err)
	}
}

func TestObjectInstance(t *testing.T) {
	src := pattern(5) // center (1,2,2) is index 32, value 2
	s := newSample(t, map[string]*volume.Volume{"seg": src})
	obj, err := NewObjectInstance("seg", "obj", false)
	if err != nil {
		t.Fatalf("new object instance: %v\n", err)
	}
	if _, err := obj.Apply(s, Params{}); err != nil {
		t.Fatalf("apply: %v\n", err)
	}
	lbl, _ := s.Get("obj")
	for i, v := range src.Data {
		if lbl.Data[i] != boolValue(v == 2) {
			t.Fatalf("center object: voxel %d with value %f labeled %f\n", i, v, lbl.Data[i])
		}
	}

	id := uint64(4)
	if _, err := obj.Apply(s, Params{ObjectID: &id}); err != nil {
		t.Fatalf("apply with id: %v\n", err)
	}
	lbl, _ = s.Get("obj")
	for i, v := range src.Data {
		if lbl.Data[i] != boolValue(v == 4) {
			t.Fatalf("object 4: voxel %d with value %f labeled %f\n", i, v, lbl.Data[i])
		}
	}
}

func TestCenterInstance(t *testing.T) {
	s := newSample(t, map[string]*volume.Volume{"seg": pattern(5)})
	ci, err := NewCenterInstance("seg", "obj", "center", true)
	if err != nil {
		t.Fatalf("new center instance: %v\n", err)
	}
	if _, err := ci.Apply(s, Params{}); err != nil {
		t.Fatalf("apply: %v\n", err)
	}
	center, found := s.Get("center")
	if !found {
		t.Fatalf("center mask not written")
	}
	if center.Sum() != 1 || center.At(0, 1, 2, 2) != 1 {
		t.Errorf("expected single center voxel at (1,2,2)")
	}
	if !s.Has("obj") || !s.Has("obj_mask") {
		t.Errorf("object instance outputs missing")
	}
	if got := ci.Targets(); len(got) != 2 || got[1] != "center" {
		t.Errorf("expected targets [obj center], got %v\n", got)
	}

	// A mask that can't match the label makes the whole transform fail.
	bad := newSample(t, map[string]*volume.Volume{"seg": pattern(5)})
	bad.Commit(map[string]*volume.Volume{"seg_mask": volume.Filled(1, 60)})
	if _, err := ci.Apply(bad, Params{}); !errors.Is(err, volume.ErrShape) {
		t.Fatalf("expected ErrShape, got %v\n", err)
	}
	if bad.Has("center") || bad.Has("obj") {
		t.Errorf("failed center instance wrote partial output")
	}

	if _, err := NewCenterInstance("seg", "obj", "obj_mask", true); !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig for colliding mask key, got %v\n", err)
	}
}

func TestMissingSource(t *testing.T) {
	s := sample.New("empty")
	transforms := []Transform{}
	b, _ := NewBoundary("x", "y", true)
	seg, _ := NewSegmentation("x", "y", true)
	sem, _ := NewSemantic([]uint64{1}, "x", "y", true)
	syn, _ := NewSynapse("x", "y", false, 0)
	obj, _ := NewObjectInstance("x", "y", true)
	ci, _ := NewCenterInstance("x", "y", "c", true)
	aff, _ := NewAffinity(AffinityConfig{Dst: volume.AxisOffsets, Source: "x", Target: "y"})
	transforms = append(transforms, b, seg, sem, syn, obj, ci, aff)
	for _, tr := range transforms {
		if _, err := tr.Apply(s, Params{}); !errors.Is(err, sample.ErrMissingKey) {
			t.Errorf("%s: expected ErrMissingKey, got %v\n", tr.Type(), err)
		}
	}
	if s.Len() != 0 {
		t.Errorf("failed transforms wrote %d entries\n", s.Len())
	}
}
