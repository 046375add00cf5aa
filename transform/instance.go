package transform

import (
	"fmt"

	"github.com/janelia-flyem/trainlabels/labels"
	"github.com/janelia-flyem/trainlabels/sample"
	"github.com/janelia-flyem/trainlabels/volume"
)

func init() {
	Register(ObjectInstanceType, func(c Config) (Transform, error) {
		return NewObjectInstance(c.Source, c.Target, boolOr(c.Rebalance, true))
	})
	Register(CenterInstanceType, func(c Config) (Transform, error) {
		return NewCenterInstance(c.Source, c.Target, c.Mask, boolOr(c.Rebalance, true))
	})
}

const (
	ObjectInstanceType = "object_instance"
	CenterInstanceType = "center_instance"
)

// ObjectInstance labels the voxels of a single object.  The object is given by
// Params.ObjectID or, if that is nil, the ID at the center voxel.
type ObjectInstance struct {
	keys
	Rebalance bool
}

func NewObjectInstance(source, target string, rebalance bool) (*ObjectInstance, error) {
	k := keys{Source: source, Target: target}
	if err := k.validate(ObjectInstanceType); err != nil {
		return nil, err
	}
	return &ObjectInstance{keys: k, Rebalance: rebalance}, nil
}

func (t *ObjectInstance) Type() string { return ObjectInstanceType }

func (t *ObjectInstance) compute(s *sample.Sample, p Params) (lbl, w *volume.Volume, err error) {
	seg, msk, err := s.Extract(t.Source)
	if err != nil {
		return nil, nil, err
	}
	if lbl, err = labels.BinarizeObject(seg, p.ObjectID); err != nil {
		return nil, nil, err
	}
	if w, err = labelMask(lbl, msk, t.Rebalance, 0); err != nil {
		return nil, nil, err
	}
	return lbl, w, nil
}

func (t *ObjectInstance) Apply(s *sample.Sample, p Params) (*sample.Sample, error) {
	lbl, w, err := t.compute(s, p)
	if err != nil {
		return nil, err
	}
	if err := s.Store(t.Target, lbl, w); err != nil {
		return nil, err
	}
	return s, nil
}

// CenterInstance is an ObjectInstance that also writes, under Mask, a volume
// marking only the spatial center voxel.  The center mask and the object label
// are written together or not at all.
type CenterInstance struct {
	ObjectInstance
	Mask string
}

func NewCenterInstance(source, target, mask string, rebalance bool) (*CenterInstance, error) {
	obj, err := NewObjectInstance(source, target, rebalance)
	if err != nil {
		return nil, err
	}
	if mask != "" && (mask == target || mask == sample.MaskKey(target)) {
		return nil, fmt.Errorf("center mask key %q collides with target %q: %w", mask, target, ErrConfig)
	}
	return &CenterInstance{ObjectInstance: *obj, Mask: mask}, nil
}

func (t *CenterInstance) Type() string { return CenterInstanceType }

// Targets includes the center mask key when one is configured.
func (t *CenterInstance) Targets() []string {
	if t.Mask == "" {
		return t.keys.Targets()
	}
	return []string{t.Target, t.Mask}
}

func (t *CenterInstance) Apply(s *sample.Sample, p Params) (*sample.Sample, error) {
	var center *volume.Volume
	if t.Mask != "" {
		seg, found := s.Get(t.Source)
		if !found {
			return nil, fmt.Errorf("sample %s has no %q: %w", s.ID, t.Source, sample.ErrMissingKey)
		}
		var err error
		if center, err = labels.CenterMask(seg); err != nil {
			return nil, err
		}
	}
	lbl, w, err := t.compute(s, p)
	if err != nil {
		return nil, err
	}
	entries := map[string]*volume.Volume{
		t.Target:                 lbl,
		sample.MaskKey(t.Target): w,
	}
	if center != nil {
		entries[t.Mask] = center
	}
	s.Commit(entries)
	return s, nil
}
